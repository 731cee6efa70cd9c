package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

type awaitOptions struct {
	initialInterval time.Duration
	maxInterval     time.Duration
	maxWait         time.Duration
	logger          *slog.Logger
}

// AwaitOption configures AwaitToken.
type AwaitOption func(*awaitOptions)

// WithPollInterval sets the first and the largest delay between polls.
func WithPollInterval(initial, maxInterval time.Duration) AwaitOption {
	return func(o *awaitOptions) {
		o.initialInterval = initial
		o.maxInterval = maxInterval
	}
}

// WithMaxWait gives up after d. By default AwaitToken waits until ctx is done.
func WithMaxWait(d time.Duration) AwaitOption {
	return func(o *awaitOptions) {
		o.maxWait = d
	}
}

// WithAwaitLogger sets the logger used for retry notifications.
func WithAwaitLogger(logger *slog.Logger) AwaitOption {
	return func(o *awaitOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func retryable(err error) bool {
	return errors.Is(err, ErrNoTokenPresent) || errors.Is(err, ErrFailedToLockToken)
}

// AwaitToken polls retriever with exponential backoff until a token is
// available, ctx is done, or the optional maximum wait elapses. Only
// ErrNoTokenPresent and ErrFailedToLockToken are retried.
func AwaitToken(ctx context.Context, retriever TokenRetriever, opts ...AwaitOption) (string, error) {
	o := awaitOptions{
		initialInterval: 50 * time.Millisecond,
		maxInterval:     time.Second,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	operation := func() (string, error) {
		token, err := retriever.Token()
		if err != nil && !retryable(err) {
			return "", backoff.Permanent(err)
		}
		return token, err
	}

	for {
		expBackoff := backoff.NewExponentialBackOff()
		expBackoff.InitialInterval = o.initialInterval
		expBackoff.MaxInterval = o.maxInterval
		expBackoff.Reset()

		retryOpts := []backoff.RetryOption{
			backoff.WithBackOff(expBackoff),
			backoff.WithNotify(func(err error, next time.Duration) {
				o.logger.Debug("waiting for token", "error", err, "next", next)
			}),
		}
		if o.maxWait > 0 {
			retryOpts = append(retryOpts, backoff.WithMaxElapsedTime(o.maxWait))
		}

		token, err := backoff.Retry(ctx, operation, retryOpts...)
		if err == nil || o.maxWait > 0 || !retryable(err) || ctx.Err() != nil {
			return token, err
		}
		// The default elapsed-time cap was reached; keep waiting.
	}
}
