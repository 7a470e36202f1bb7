// SPDX-License-Identifier: Apache-2.0

package negotiate

import (
	"errors"
	"log/slog"
	"net/http"
)

// Middleware is an [http.Handler] that authenticates the underlying
// connection using the Negotiate scheme before forwarding requests to the
// next handler. Requests on a connection whose handshake has completed are
// forwarded with the cached [Authenticated] identity attached; all others are
// answered with the appropriate challenge or rejection.
//
// The middleware requires the per-connection state installed by
// [ConnContext]; without it every request is answered with status 500.
type Middleware struct {
	next     http.Handler
	provider Provider
	spn      string

	logger         *slog.Logger
	immediateGrant bool
	http2          bool
}

// Option configures a Middleware.
type Option func(m *Middleware)

// WithLogger sets the structured logger used by the middleware. The default
// is [slog.Default]. Token bytes and mechanism diagnostics are logged at
// debug level only and never written to responses.
func WithLogger(l *slog.Logger) Option {
	return func(m *Middleware) {
		m.logger = l
	}
}

// WithImmediateGrant controls what happens on the request whose token
// completes the handshake. When true (the default) that request is forwarded
// immediately, with the final server token on the response. When false the
// middleware answers 401 carrying the final token and grants access from the
// next request on the connection, for clients that expect a confirmation
// round trip before sending real payload.
func WithImmediateGrant(enabled bool) Option {
	return func(m *Middleware) {
		m.immediateGrant = enabled
	}
}

// WithHTTP2 declares that the server also speaks HTTP/2. Connection-specific
// headers are forbidden there (RFC 9113 § 8.2.2), so the keep-alive header
// normally added to challenge responses is suppressed. Handshake state is
// serialized per connection either way.
func WithHTTP2(enabled bool) Option {
	return func(m *Middleware) {
		m.http2 = enabled
	}
}

// NewMiddleware creates a Middleware that authenticates connections with the
// given provider before forwarding requests to next. spn is the service
// principal name advertised during negotiation, e.g. "HTTP/www.example.com".
func NewMiddleware(next http.Handler, provider Provider, spn string, options ...Option) *Middleware {
	m := &Middleware{
		next:           next,
		provider:       provider,
		spn:            spn,
		logger:         slog.Default(),
		immediateGrant: true,
	}
	for _, option := range options {
		option(m)
	}
	return m
}

// stepOutcome is what one locked negotiation step decided should happen to
// the current request once the lock is released.
type stepOutcome int

const (
	outcomeForward stepOutcome = iota
	outcomeChallenge
	outcomeContinue
	outcomeReject
	outcomeMalformed
	outcomeNoState
)

func (m *Middleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	outcome, token, identity := m.step(r)

	switch outcome {
	case outcomeForward:
		if len(token) > 0 {
			// The final handshake token must still reach the client
			// even though the request proceeds.
			w.Header().Set("WWW-Authenticate", formatNegotiateHeader(token))
		}
		m.next.ServeHTTP(w, r.WithContext(stashAuthenticated(r.Context(), identity)))
	case outcomeChallenge:
		m.challenge(w, nil, "Unauthorized\n")
	case outcomeContinue:
		m.challenge(w, token, "continue\n")
	case outcomeReject:
		m.challenge(w, nil, "Unauthorized\n")
	case outcomeMalformed:
		http.Error(w, "Bad Request", http.StatusBadRequest)
	case outcomeNoState:
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// step runs the decision procedure for one request under the connection's
// lock: read phase, decode token, drive the provider, update phase. The lock
// is released before the response is written.
func (m *Middleware) step(r *http.Request) (stepOutcome, []byte, *Authenticated) {
	cs := connStateFromContext(r.Context())
	if cs == nil {
		m.logger.Error("negotiate: request without connection state",
			"err", ErrNoConnectionState, "remote", r.RemoteAddr)
		return outcomeNoState, nil, nil
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	switch cs.phase {
	case PhaseAuthenticated:
		// A stale token on the request is ignored: the connection is
		// already authenticated.
		return outcomeForward, nil, cs.identity
	case PhaseFailed:
		// Failed connections keep failing without another provider
		// call. The client must open a new connection.
		return outcomeReject, nil, nil
	}

	tokenIn, err := parseNegotiateHeader(r.Header.Get("Authorization"))
	switch {
	case errors.Is(err, ErrNoCredentials):
		return outcomeChallenge, nil, nil
	case errors.Is(err, ErrMalformedToken):
		cs.fail()
		m.logger.Info("negotiate: malformed token, failing connection",
			"conn", cs.id, "remote", r.RemoteAddr)
		return outcomeMalformed, nil, nil
	}

	sec := cs.pending
	if sec == nil {
		sec, err = m.provider.AcceptSecContext(WithServicePrincipal(m.spn))
		if err != nil {
			return m.stepError(cs, r, err), nil, nil
		}
	}

	tokenOut, err := sec.Continue(tokenIn)
	if err != nil {
		if sec != cs.pending {
			// first round: the context was never stored on the state
			_ = sec.Delete()
		}
		return m.stepError(cs, r, err), nil, nil
	}

	if sec.ContinueNeeded() {
		cs.beginNegotiation(sec)
		m.logger.Debug("negotiate: continue needed",
			"conn", cs.id, "token_out_length", len(tokenOut))
		return outcomeContinue, tokenOut, nil
	}

	info, err := sec.Info()
	if err != nil {
		m.logger.Error("negotiate: established context without info",
			"conn", cs.id, "err", err)
		if sec != cs.pending {
			_ = sec.Delete()
		}
		return m.stepError(cs, r, err), nil, nil
	}
	identity := newAuthenticated(info)
	cs.complete(identity)
	_ = sec.Delete()

	principal, _ := identity.Principal()
	m.logger.Info("negotiate: connection authenticated",
		"conn", cs.id, "remote", r.RemoteAddr, "principal", principal, "mech", identity.Mech())

	if !m.immediateGrant {
		return outcomeContinue, tokenOut, nil
	}
	return outcomeForward, tokenOut, identity
}

// stepError resolves a provider failure into a phase transition and an
// outcome. Transient failures abandon the handshake for a fresh attempt;
// everything else fails the connection terminally.
func (m *Middleware) stepError(cs *connState, r *http.Request, err error) stepOutcome {
	if IsTransient(err) {
		cs.abandon()
		m.logger.Warn("negotiate: transient provider failure",
			"conn", cs.id, "remote", r.RemoteAddr, "err", err)
		return outcomeChallenge
	}
	cs.fail()
	m.logger.Info("negotiate: authentication failed",
		"conn", cs.id, "remote", r.RemoteAddr, "err", err)
	return outcomeReject
}

// challenge writes a 401 response carrying a Negotiate challenge: bare when
// token is empty, otherwise with the continuation or final token. No
// mechanism detail beyond the token itself reaches the client.
func (m *Middleware) challenge(w http.ResponseWriter, token []byte, body string) {
	w.Header().Set("WWW-Authenticate", formatNegotiateHeader(token))
	if !m.http2 {
		w.Header().Set("Connection", "keep-alive")
	}
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(body))
}
