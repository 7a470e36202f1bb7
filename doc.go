// SPDX-License-Identifier: Apache-2.0

/*
Package negotiate provides connection-scoped HTTP "Negotiate" (SPNEGO)
authentication middleware supporting RFC 4559.

Negotiate authentication is stateful and bound to the underlying transport
connection: the client and server exchange one or more base64 encoded security
tokens over successive requests on the same connection until the security
context is established. After that, every request on the connection is treated
as authenticated without repeating the handshake.

The middleware needs two things: a security context provider that accepts
tokens (see [Provider]), and per-connection state wired into the server via
[ConnContext]:

	import (
		"net/http"

		negotiate "github.com/golang-auth/go-negotiate"
		"github.com/golang-auth/go-negotiate/krb5"
	)

	p, err := krb5.Load("/etc/krb5.keytab")
	...

	mw := negotiate.NewMiddleware(mux, p, "HTTP/www.example.com")
	srv := &http.Server{
		Addr:        ":8080",
		Handler:     mw,
		ConnContext: negotiate.ConnContext,
	}
	err = srv.ListenAndServe()

[NewServer] builds a server with the ConnContext hook pre-installed. Without
the hook the middleware has no connection to bind handshake state to, and
answers every request with status 500.

Handlers behind the middleware obtain the authenticated peer with
[FromRequest]:

	func hello(w http.ResponseWriter, r *http.Request) {
		auth, _ := negotiate.FromRequest(r)
		name, _ := auth.Principal()
		fmt.Fprintf(w, "Hello, %s!\n", name)
	}

# Providers

Providers implement the acceptor side of the token exchange. This module
ships two:

  - [github.com/golang-auth/go-negotiate/krb5]: pure-Go Kerberos acceptor on
    top of a keytab (all platforms)
  - [github.com/golang-auth/go-negotiate/sspi]: native Windows SSPI acceptor,
    which also handles NTLM inside SPNEGO (Windows only)

Providers register themselves with [RegisterProvider] from their init
functions so that they can be selected by name with [NewProvider].

# Connection scoping

Handshake state belongs to exactly one transport connection and is discarded
when the connection closes. A security context established on one connection
is never attributed to requests arriving on another. Requests multiplexed
onto a single HTTP/2 connection serialize through the handshake; requests on
different connections never contend.
*/
package negotiate
