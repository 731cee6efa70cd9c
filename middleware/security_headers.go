package middleware

import (
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/mnehpets/loopback/endpoint"
)

// SecurityHeadersProcessor sets response headers for pages served from a
// plain-http loopback listener.
//
// Defaults from NewSecurityHeadersProcessor:
//   - Referrer-Policy: no-referrer
//   - X-Frame-Options: DENY
//   - X-Content-Type-Options: nosniff
//   - Cache-Control: no-store
//   - Content-Security-Policy: default-src 'none'; base-uri 'none'; form-action 'none'; frame-ancestors 'none'
//   - Cross-Origin-Opener-Policy: same-origin
//   - Cross-Origin-Resource-Policy: same-origin
//
// Strict-Transport-Security is never sent: the listener has no TLS and a
// pinned HSTS entry for 127.0.0.1 would break later logins.
type SecurityHeadersProcessor struct {
	// ReferrerPolicy sets the Referrer-Policy header.
	// Set to empty string to disable.
	ReferrerPolicy string

	// FrameOptions sets the X-Frame-Options header.
	// Set to empty string to disable.
	FrameOptions string

	// ContentTypeOptions enables X-Content-Type-Options: nosniff.
	ContentTypeOptions bool

	// CacheControl sets the Cache-Control header.
	// Set to empty string to disable.
	CacheControl string

	// ContentSecurityPolicy sets the Content-Security-Policy header.
	// Set to empty string to disable.
	ContentSecurityPolicy string

	// CrossOriginOpenerPolicy sets the Cross-Origin-Opener-Policy header.
	CrossOriginOpenerPolicy string

	// CrossOriginResourcePolicy sets the Cross-Origin-Resource-Policy header.
	CrossOriginResourcePolicy string
}

// SecurityHeadersOption is a functional option for configuring SecurityHeadersProcessor.
type SecurityHeadersOption func(*SecurityHeadersProcessor)

// NewSecurityHeadersProcessor creates a SecurityHeadersProcessor with defaults
// for loopback pages.
func NewSecurityHeadersProcessor(opts ...SecurityHeadersOption) *SecurityHeadersProcessor {
	p := &SecurityHeadersProcessor{
		ReferrerPolicy:            "no-referrer",
		FrameOptions:              "DENY",
		ContentTypeOptions:        true,
		CacheControl:              "no-store",
		ContentSecurityPolicy:     "default-src 'none'; base-uri 'none'; form-action 'none'; frame-ancestors 'none'",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "same-origin",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithReferrerPolicy sets the Referrer-Policy header.
func WithReferrerPolicy(policy string) SecurityHeadersOption {
	return func(p *SecurityHeadersProcessor) {
		p.ReferrerPolicy = policy
	}
}

// WithFrameOptions sets the X-Frame-Options header.
// Common values: DENY, SAMEORIGIN
func WithFrameOptions(options string) SecurityHeadersOption {
	return func(p *SecurityHeadersProcessor) {
		p.FrameOptions = options
	}
}

// WithCacheControl sets the Cache-Control header.
func WithCacheControl(value string) SecurityHeadersOption {
	return func(p *SecurityHeadersProcessor) {
		p.CacheControl = value
	}
}

// WithCSP sets the Content-Security-Policy header.
func WithCSP(policy string) SecurityHeadersOption {
	return func(p *SecurityHeadersProcessor) {
		p.ContentSecurityPolicy = policy
	}
}

// WithCrossOriginPolicies sets the COOP and CORP headers.
func WithCrossOriginPolicies(opener, resource string) SecurityHeadersOption {
	return func(p *SecurityHeadersProcessor) {
		p.CrossOriginOpenerPolicy = opener
		p.CrossOriginResourcePolicy = resource
	}
}

// ScriptHashSource returns the CSP source expression ('sha256-...') that
// allows exactly the inline script body.
func ScriptHashSource(script string) string {
	sum := sha256.Sum256([]byte(script))
	return "'sha256-" + base64.StdEncoding.EncodeToString(sum[:]) + "'"
}

// CSP joins directives into a Content-Security-Policy value.
func CSP(directives ...string) string {
	return strings.Join(directives, "; ")
}

// Process implements endpoint.Processor.
func (p *SecurityHeadersProcessor) Process(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request) error) error {
	h := w.Header()
	set := func(key, value string) {
		if value != "" {
			h.Set(key, value)
		}
	}
	set("Referrer-Policy", p.ReferrerPolicy)
	set("X-Frame-Options", p.FrameOptions)
	if p.ContentTypeOptions {
		h.Set("X-Content-Type-Options", "nosniff")
	}
	set("Cache-Control", p.CacheControl)
	set("Content-Security-Policy", p.ContentSecurityPolicy)
	set("Cross-Origin-Opener-Policy", p.CrossOriginOpenerPolicy)
	set("Cross-Origin-Resource-Policy", p.CrossOriginResourcePolicy)
	return next(w, r)
}

var _ endpoint.Processor = (*SecurityHeadersProcessor)(nil)
