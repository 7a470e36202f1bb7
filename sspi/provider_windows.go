// SPDX-License-Identifier: Apache-2.0

//go:build windows

package sspi

import (
	"fmt"

	"github.com/alexbrainman/sspi"
	winneg "github.com/alexbrainman/sspi/negotiate"

	negotiate "github.com/golang-auth/go-negotiate"
)

// Provider accepts Negotiate security contexts through Windows SSPI.
type Provider struct{}

// New creates the SSPI provider.
func New() (negotiate.Provider, error) {
	return &Provider{}, nil
}

// Name returns the unique name of the provider.
func (p *Provider) Name() string {
	return ProviderName
}

// AcceptSecContext acquires server credentials for the service principal and
// returns a context ready for the initiator's first token. Credential
// acquisition failures are operational, not token rejections, and are
// reported as transient.
func (p *Provider) AcceptSecContext(opts ...negotiate.AcceptOption) (negotiate.SecContext, error) {
	o := negotiate.AcceptOptions{}
	for _, f := range opts {
		f(&o)
	}

	cred, err := winneg.AcquireServerCredentials(o.ServicePrincipal)
	if err != nil {
		return nil, &negotiate.TransientError{Err: fmt.Errorf("sspi: acquiring server credentials: %w", err)}
	}

	return &secContext{cred: cred}, nil
}

type secContext struct {
	cred        *sspi.Credentials
	sc          *winneg.ServerContext
	established bool
	info        *negotiate.ContextInfo
}

// Continue feeds one initiator token to SSPI. NTLM needs two rounds, so the
// first call creates the server context and later calls update it.
func (c *secContext) Continue(tokenIn []byte) ([]byte, error) {
	if c.established {
		return nil, fmt.Errorf("sspi: context already established")
	}

	var (
		done bool
		out  []byte
		err  error
	)
	if c.sc == nil {
		c.sc, done, out, err = winneg.NewServerContext(c.cred, tokenIn)
	} else {
		done, out, err = c.sc.Update(tokenIn)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", negotiate.ErrProviderRejected, err)
	}

	if done {
		info := &negotiate.ContextInfo{Mech: "spnego", FullyEstablished: true}
		if name, err := c.sc.GetUsername(); err == nil {
			info.InitiatorName = name
		}
		c.info = info
		c.established = true
	}

	return out, nil
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
	var err error
	if c.sc != nil {
		err = c.sc.Release()
		c.sc = nil
	}
	if c.cred != nil {
		if cerr := c.cred.Release(); err == nil {
			err = cerr
		}
		c.cred = nil
	}
	return err
}
