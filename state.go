// SPDX-License-Identifier: Apache-2.0

package negotiate

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Phase is the handshake state of a single connection. Phases only ever move
// forward: Unauthenticated → Negotiating (possibly several rounds) → one of
// the terminal phases Authenticated or Failed.
type Phase int

const (
	PhaseUnauthenticated Phase = iota
	PhaseNegotiating
	PhaseAuthenticated
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseUnauthenticated:
		return "Unauthenticated"
	case PhaseNegotiating:
		return "Negotiating"
	case PhaseAuthenticated:
		return "Authenticated"
	case PhaseFailed:
		return "Failed"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

func (p Phase) terminal() bool {
	return p == PhaseAuthenticated || p == PhaseFailed
}

// connState holds the Negotiate handshake state for one transport connection.
// It is created when the connection is accepted and discarded with the
// connection's context when the connection closes; it is never shared between
// connections.
//
// mu serializes concurrent requests multiplexed onto the same connection
// (HTTP/2). It is held for the duration of one request's negotiation step —
// token decode, provider call, phase update — so a step is atomic with
// respect to the connection's other requests.
//
// Invariants: identity is non-nil iff phase == PhaseAuthenticated; pending is
// non-nil iff phase == PhaseNegotiating.
type connState struct {
	mu sync.Mutex

	id       string
	phase    Phase
	pending  SecContext
	identity *Authenticated
}

func newConnState() *connState {
	return &connState{id: uuid.NewString()}
}

// beginNegotiation records a handshake round in flight. Callers must hold mu.
func (s *connState) beginNegotiation(pending SecContext) {
	if s.phase.terminal() {
		panic("negotiate: negotiation step on " + s.phase.String() + " connection")
	}
	s.phase = PhaseNegotiating
	s.pending = pending
}

// complete moves the connection to its authenticated terminal phase. Callers
// must hold mu.
func (s *connState) complete(identity *Authenticated) {
	if s.phase.terminal() {
		panic("negotiate: completing " + s.phase.String() + " connection")
	}
	s.phase = PhaseAuthenticated
	s.pending = nil
	s.identity = identity
}

// fail moves the connection to its failed terminal phase, releasing any
// half-built security context. Callers must hold mu.
func (s *connState) fail() {
	if s.phase == PhaseAuthenticated {
		panic("negotiate: failing an authenticated connection")
	}
	if s.pending != nil {
		_ = s.pending.Delete()
		s.pending = nil
	}
	s.phase = PhaseFailed
}

// watchTeardown fails the connection when its context is cancelled, which
// the server does on connection close. A handshake abandoned mid-exchange
// would otherwise keep its pending security context, and with it whatever
// native credential handles the provider acquired.
func (s *connState) watchTeardown(ctx context.Context) {
	<-ctx.Done()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseNegotiating {
		s.fail()
	}
}

// abandon discards an in-flight handshake after a transient provider failure,
// returning the connection to its initial phase so the client may start a
// fresh exchange. Callers must hold mu.
func (s *connState) abandon() {
	if s.phase.terminal() {
		panic("negotiate: abandoning " + s.phase.String() + " connection")
	}
	if s.pending != nil {
		_ = s.pending.Delete()
		s.pending = nil
	}
	s.phase = PhaseUnauthenticated
}
