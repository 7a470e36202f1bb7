// SPDX-License-Identifier: Apache-2.0

package negotiate

import (
	"context"
	"net"
	"net/http"
)

// ConnContext attaches a fresh negotiation state to an accepted connection.
// Install it as the ConnContext hook of an [http.Server]:
//
//	srv := &http.Server{
//		Handler:     negotiate.NewMiddleware(mux, provider, spn),
//		ConnContext: negotiate.ConnContext,
//	}
//
// The server calls the hook once per accepted connection, so each connection
// gets its own state, reachable from the context of every request the server
// dispatches on that connection. The state lives exactly as long as the
// connection. The server cancels ctx when the connection closes; that
// releases any security context still pending from a handshake the client
// abandoned mid-exchange.
func ConnContext(ctx context.Context, c net.Conn) context.Context {
	cs := newConnState()
	if ctx.Done() != nil {
		go cs.watchTeardown(ctx)
	}
	return context.WithValue(ctx, connStateContextKey, cs)
}

// NewServer returns an [http.Server] with the [ConnContext] hook installed,
// serving the supplied handler. The handler should contain a [Middleware] for
// the hook to be of any use.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:        addr,
		Handler:     handler,
		ConnContext: ConnContext,
	}
}

// connStateFromContext returns the connection's negotiation state, or nil if
// the request was dispatched by a server without the ConnContext hook.
func connStateFromContext(ctx context.Context) *connState {
	cs, ok := ctx.Value(connStateContextKey).(*connState)
	if !ok {
		return nil
	}
	return cs
}
