package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/mnehpets/loopback/endpoint"
)

// RequestLogger logs one record per request: method, path, status and
// duration. Query strings and bodies are never logged since they may carry
// tokens.
type RequestLogger struct {
	logger *slog.Logger
}

// NewRequestLogger returns a RequestLogger writing to logger, or to
// slog.Default() when logger is nil.
func NewRequestLogger(logger *slog.Logger) *RequestLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &RequestLogger{logger: logger}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	if sr.status == 0 {
		sr.status = status
	}
	sr.ResponseWriter.WriteHeader(status)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	return sr.ResponseWriter.Write(b)
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// Process implements endpoint.Processor.
func (l *RequestLogger) Process(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request) error) error {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w}
	err := next(rec, r)

	status := rec.status
	if err != nil {
		status = endpoint.StatusOf(err)
	}
	attrs := []any{
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"duration", time.Since(start),
	}
	switch {
	case status >= http.StatusInternalServerError:
		l.logger.Error("request failed", append(attrs, "error", err)...)
	case err != nil:
		l.logger.Debug("request rejected", append(attrs, "error", err)...)
	default:
		l.logger.Debug("request served", attrs...)
	}
	return err
}

var _ endpoint.Processor = (*RequestLogger)(nil)
