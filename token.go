// SPDX-License-Identifier: Apache-2.0

package negotiate

import (
	"encoding/base64"
	"strings"
)

const negotiateScheme = "Negotiate"

// parseNegotiateHeader extracts the raw security token from an Authorization
// header value. Scheme matching is case-insensitive per RFC 9110 § 11.1.
//
// An absent header, a different scheme, or a bare "Negotiate" with no token
// yields ErrNoCredentials: the request is simply unauthenticated. A correct
// scheme prefix followed by invalid base64 yields ErrMalformedToken, which is
// a protocol error rather than an absence of credentials.
func parseNegotiateHeader(header string) ([]byte, error) {
	const prefix = negotiateScheme + " "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return nil, ErrNoCredentials
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(header[len(prefix):]))
	if err != nil {
		return nil, ErrMalformedToken
	}
	return raw, nil
}

// formatNegotiateHeader produces a WWW-Authenticate header value carrying the
// supplied token. An empty token produces the bare "Negotiate" challenge that
// starts a handshake.
func formatNegotiateHeader(token []byte) string {
	if len(token) == 0 {
		return negotiateScheme
	}
	return negotiateScheme + " " + base64.StdEncoding.EncodeToString(token)
}
