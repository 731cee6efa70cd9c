// Package webserver runs the one-shot loopback listener that receives the
// access token from the browser at the end of an implicit-grant login.
package webserver

import "context"

// Callback receives a token and state value posted by the landing page. It
// returns nil when the login completed, which stops the listener.
type Callback func(token string, state int16) error

// WebServer is a listener that can be launched once for a login.
type WebServer interface {
	// Port is the loopback port the listener binds.
	Port() uint16
	// Launch binds the port and starts serving in the background. cb runs
	// once per callback request, before the response is written. Launch
	// returns once the listener accepts connections.
	Launch(ctx context.Context, cb Callback) error
}
