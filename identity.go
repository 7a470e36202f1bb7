// SPDX-License-Identifier: Apache-2.0

package negotiate

import (
	"context"
	"net/http"
)

type contextKey struct {
	name string
}

func (k *contextKey) String() string { return "negotiate context value " + k.name }

var (
	connStateContextKey     = &contextKey{"conn-state"}
	authenticatedContextKey = &contextKey{"authenticated"}
)

// Authenticated is the immutable snapshot of a completed handshake, attached
// to every request forwarded on an authenticated connection. It is created
// once, when the connection's security context is established, and shared
// read-only thereafter.
type Authenticated struct {
	principal string
	mech      string
}

func newAuthenticated(info *ContextInfo) *Authenticated {
	a := &Authenticated{}
	if info != nil {
		a.principal = info.InitiatorName
		a.mech = info.Mech
	}
	return a
}

// Principal returns the authenticated client principal name, e.g.
// "alice@EXAMPLE.COM". The second result is false when the mechanism
// completed the handshake without conveying identity information; such a
// client is authenticated but anonymous.
func (a *Authenticated) Principal() (string, bool) {
	return a.principal, a.principal != ""
}

// Mech names the mechanism that authenticated the connection, if known.
func (a *Authenticated) Mech() string {
	return a.mech
}

// Record the authenticated identity in the request context
func stashAuthenticated(ctx context.Context, a *Authenticated) context.Context {
	return context.WithValue(ctx, authenticatedContextKey, a)
}

// FromRequest returns the authenticated identity attached to a request by the
// middleware. It can be used by the 'next' handler called once the
// connection's handshake has completed; before that it reports false.
func FromRequest(r *http.Request) (*Authenticated, bool) {
	return FromContext(r.Context())
}

// FromContext is the context-level form of [FromRequest].
func FromContext(ctx context.Context) (*Authenticated, bool) {
	a, ok := ctx.Value(authenticatedContextKey).(*Authenticated)
	return a, ok
}
