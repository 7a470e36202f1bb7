// SPDX-License-Identifier: Apache-2.0

// Package sspi provides a negotiate middleware provider backed by the native
// Windows SSPI Negotiate package. Unlike the keytab-based krb5 provider it
// authenticates with the machine or service account credentials known to
// Windows, and accepts NTLM initiators inside SPNEGO, including the
// multi-round NTLM exchange.
//
// The provider registers itself under the name "sspi". On non-Windows
// platforms the package compiles but its constructor returns an error, so
// cross-platform callers can select a provider at runtime.
package sspi

import negotiate "github.com/golang-auth/go-negotiate"

// ProviderName is the name this provider registers itself under.
const ProviderName = "sspi"

func init() {
	negotiate.RegisterProvider(ProviderName, New)
}
