// SPDX-License-Identifier: Apache-2.0

package negotiate

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCredentials indicates that a request carried no Negotiate
	// credentials: the Authorization header was absent, used a different
	// scheme, or held a bare "Negotiate" with no token. This is not a
	// protocol failure; it triggers the initial challenge.
	ErrNoCredentials = errors.New("negotiate: no credentials supplied")

	// ErrMalformedToken indicates an Authorization header with a correct
	// Negotiate scheme prefix but a token that is not valid base64. The
	// connection is failed terminally when this is seen.
	ErrMalformedToken = errors.New("negotiate: malformed token")

	// ErrContextNotEstablished is returned by SecContext.Info when the
	// security context has not completed its token exchange.
	ErrContextNotEstablished = errors.New("negotiate: security context not established")

	// ErrNoConnectionState is reported when a request arrives without
	// per-connection negotiation state, meaning ConnContext was not
	// installed on the server.
	ErrNoConnectionState = errors.New("negotiate: no connection state attached (is ConnContext installed on the server?)")

	// ErrProviderRejected indicates that the security context provider
	// rejected the supplied token: bad ticket, expired context,
	// cryptographic mismatch. Terminal for the connection. Providers wrap
	// it with mechanism detail; the middleware logs that detail but never
	// sends it to the client.
	ErrProviderRejected = errors.New("negotiate: security context rejected")

	// ErrProviderNotFound is returned by NewProvider when no provider is
	// registered under the requested name.
	ErrProviderNotFound = errors.New("negotiate: provider not found")
)

// TransientError wraps a provider failure that is operational (resource
// exhaustion, keytab unreadable) rather than a rejection of the supplied
// token. The middleware discards the half-built context and allows a fresh
// handshake instead of failing the connection terminally.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("negotiate: transient provider error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether any error in err's chain is a [TransientError].
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
