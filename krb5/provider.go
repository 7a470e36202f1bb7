// SPDX-License-Identifier: Apache-2.0

// Package krb5 provides a pure-Go Kerberos acceptor for the negotiate
// middleware, built on gokrb5 keytabs. It works on every platform and is the
// usual choice for services whose principals live in a keytab file.
//
// The provider registers itself under the name "kerberos". The registered
// constructor loads the keytab named by the KRB5_KTNAME environment variable,
// falling back to /etc/krb5.keytab; use [New] or [Load] to control the keytab
// explicitly.
package krb5

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"os"

	"github.com/jcmturner/goidentity/v6"
	"github.com/jcmturner/gokrb5/v8/gssapi"
	"github.com/jcmturner/gokrb5/v8/keytab"
	"github.com/jcmturner/gokrb5/v8/service"
	"github.com/jcmturner/gokrb5/v8/spnego"

	negotiate "github.com/golang-auth/go-negotiate"
)

// ProviderName is the name this provider registers itself under.
const ProviderName = "kerberos"

const defaultKeytabPath = "/etc/krb5.keytab"

// NegTokenResp with an accept-completed status, sent to the client as the
// final handshake token. The encoding is constant for Kerberos, so it is
// kept pre-marshalled.
var acceptCompleted = mustDecode("oRQwEqADCgEAoQsGCSqGSIb3EgECAg==")

func mustDecode(s string) []byte {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

func init() {
	negotiate.RegisterProvider(ProviderName, func() (negotiate.Provider, error) {
		path := os.Getenv("KRB5_KTNAME")
		if path == "" {
			path = defaultKeytabPath
		}
		return Load(path)
	})
}

// Provider accepts SPNEGO/Kerberos security contexts using keys from a
// keytab.
type Provider struct {
	kt       *keytab.Keytab
	settings []func(*service.Settings)
}

// Option is a function that can be used to configure the Provider.
type Option func(p *Provider)

// WithLogger directs gokrb5 service-level diagnostics to l.
func WithLogger(l *log.Logger) Option {
	return func(p *Provider) {
		p.settings = append(p.settings, service.Logger(l))
	}
}

// WithSettings passes additional gokrb5 service settings through to the
// underlying SPNEGO service, for knobs this package does not wrap.
func WithSettings(settings ...func(*service.Settings)) Option {
	return func(p *Provider) {
		p.settings = append(p.settings, settings...)
	}
}

// New creates a Provider from an already loaded keytab.
func New(kt *keytab.Keytab, options ...Option) *Provider {
	p := &Provider{kt: kt}
	for _, option := range options {
		option(p)
	}
	return p
}

// Load creates a Provider from a keytab file.
func Load(path string, options ...Option) (*Provider, error) {
	kt, err := keytab.Load(path)
	if err != nil {
		return nil, fmt.Errorf("krb5: loading keytab %s: %w", path, err)
	}
	return New(kt, options...), nil
}

// Name returns the unique name of the provider.
func (p *Provider) Name() string {
	return ProviderName
}

// AcceptSecContext returns a fresh acceptor context. The service principal
// from the options selects the keytab principal used to decrypt tickets; when
// empty the principal is derived from the ticket being decrypted.
func (p *Provider) AcceptSecContext(opts ...negotiate.AcceptOption) (negotiate.SecContext, error) {
	o := negotiate.AcceptOptions{}
	for _, f := range opts {
		f(&o)
	}

	settings := p.settings
	if o.ServicePrincipal != "" {
		settings = append(settings[:len(settings):len(settings)],
			service.KeytabPrincipal(o.ServicePrincipal))
	}

	return &secContext{svc: spnego.SPNEGOService(p.kt, settings...)}, nil
}

type secContext struct {
	svc         *spnego.SPNEGO
	established bool
	info        *negotiate.ContextInfo
}

// Continue processes the client's SPNEGO token. Kerberos completes in a
// single round: a valid AP-REQ establishes the context and the returned token
// is the constant accept-completed response.
func (c *secContext) Continue(tokenIn []byte) ([]byte, error) {
	if c.established {
		return nil, fmt.Errorf("krb5: context already established")
	}

	var st spnego.SPNEGOToken
	if err := st.Unmarshal(tokenIn); err != nil {
		return nil, fmt.Errorf("%w: unmarshalling SPNEGO token: %v", negotiate.ErrProviderRejected, err)
	}

	authed, ctx, status := c.svc.AcceptSecContext(&st)
	if !authed || status.Code != gssapi.StatusComplete {
		return nil, fmt.Errorf("%w: status %d: %s", negotiate.ErrProviderRejected, status.Code, status.Message)
	}

	info := &negotiate.ContextInfo{Mech: "krb5", FullyEstablished: true}
	if id, ok := verifiedIdentity(ctx); ok {
		info.InitiatorName = principalName(id)
	}
	c.info = info
	c.established = true

	return acceptCompleted, nil
}

func (c *secContext) ContinueNeeded() bool {
	return !c.established
}

func (c *secContext) Info() (*negotiate.ContextInfo, error) {
	if !c.established {
		return nil, negotiate.ErrContextNotEstablished
	}
	return c.info, nil
}

func (c *secContext) Delete() error {
	c.svc = nil
	return nil
}

// gokrb5 stores the verified client credentials in the context returned by
// AcceptSecContext under this key. The key is unexported there but is a plain
// string, so an equal string retrieves the value.
const ctxCredentialsKey = "github.com/jcmturner/gokrb5/v8/ctxCredentials"

func verifiedIdentity(ctx context.Context) (goidentity.Identity, bool) {
	id, ok := ctx.Value(ctxCredentialsKey).(goidentity.Identity)
	return id, ok
}

func principalName(id goidentity.Identity) string {
	name := id.UserName()
	if domain := id.Domain(); name != "" && domain != "" {
		name = name + "@" + domain
	}
	return name
}
