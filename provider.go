// SPDX-License-Identifier: Apache-2.0

package negotiate

import "sync"

var registry struct {
	sync.Mutex
	libs map[string]ProviderConstructor
}

func init() {
	registry.libs = make(map[string]ProviderConstructor)
}

// ProviderConstructor defines the function signature passed to RegisterProvider,
// used by the registration interface to create new instances of a provider.
type ProviderConstructor func() (Provider, error)

// RegisterProvider associates the supplied provider factory with the unique
// name for the provider. If a provider with name is already registered, the new
// factory function will replace the existing registration.
//
// Providers must register themselves by calling RegisterProvider in their
// init() function, and should document the name used in their call.
func RegisterProvider(name string, f ProviderConstructor) {
	registry.Lock()
	defer registry.Unlock()

	registry.libs[name] = f
}

// NewProvider instantiates a provider given its registered name by calling the
// factory function registered against the name.
func NewProvider(name string) (Provider, error) {
	registry.Lock()
	defer registry.Unlock()

	f, ok := registry.libs[name]
	if !ok {
		return nil, ErrProviderNotFound
	}

	return f()
}

// MustNewProvider wraps NewProvider in a panic. It panics if the provider name
// is not registered or its constructor returns an error.
func MustNewProvider(name string) Provider {
	registry.Lock()
	defer registry.Unlock()

	f, ok := registry.libs[name]
	if !ok {
		panic("negotiate provider not found: " + name)
	}

	p, err := f()
	if err != nil {
		panic(err)
	}

	return p
}

// AcceptOptions holds the optional parameters for accepting a security context.
type AcceptOptions struct {
	// ServicePrincipal is the service principal name the acceptor
	// advertises during negotiation, e.g. "HTTP/www.example.com". Empty
	// means the provider's default acceptor identity.
	ServicePrincipal string
}

// AcceptOption is a function type for configuring AcceptSecContext options.
type AcceptOption func(o *AcceptOptions)

// WithServicePrincipal selects a specific acceptor identity for the security
// context rather than the provider default.
func WithServicePrincipal(spn string) AcceptOption {
	return func(o *AcceptOptions) {
		o.ServicePrincipal = spn
	}
}

// ContextInfo describes an established security context.
type ContextInfo struct {
	// InitiatorName is the authenticated client principal. It may be empty
	// when the mechanism completed without conveying identity information.
	InitiatorName string

	// Mech names the mechanism that established the context, e.g. "krb5".
	Mech string

	// FullyEstablished is true once no further token exchanges are needed.
	FullyEstablished bool
}

// Provider is the capability that produces acceptor-side security contexts.
// Implementations wrap a concrete mechanism library (Kerberos keytab, Windows
// SSPI) and are selected at configuration time; callers depend only on this
// operation set.
type Provider interface {
	// Name returns the unique name of the provider.
	Name() string

	// AcceptSecContext returns a fresh acceptor security context, ready to
	// process the initiator's first token through SecContext.Continue.
	AcceptSecContext(opts ...AcceptOption) (SecContext, error)
}

// SecContext is an in-progress or established acceptor security context. A
// context is advanced one discrete step at a time by feeding it the tokens
// received from the initiator.
type SecContext interface {
	// Continue processes a token from the initiator. The returned token, if
	// not empty, must be sent back to the initiator. Callers should check
	// ContinueNeeded to find out whether the exchange is complete.
	//
	// An error means the context is unusable: the token was rejected, or —
	// when the error chain contains a [TransientError] — the provider
	// failed operationally and a fresh context may be tried.
	Continue(tokenIn []byte) (tokenOut []byte, err error)

	// ContinueNeeded reports whether more token exchanges with the
	// initiator are required to establish the context.
	ContinueNeeded() bool

	// Info returns information about the established context. It returns
	// ErrContextNotEstablished while ContinueNeeded is still true.
	Info() (*ContextInfo, error)

	// Delete releases resources associated with the context. It should be
	// called on any context that will not be advanced further.
	Delete() error
}
