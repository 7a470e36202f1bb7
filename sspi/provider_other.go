// SPDX-License-Identifier: Apache-2.0

//go:build !windows

package sspi

import (
	"errors"

	negotiate "github.com/golang-auth/go-negotiate"
)

// ErrUnsupported is returned by New on platforms without SSPI.
var ErrUnsupported = errors.New("sspi: only supported on Windows")

// New reports that SSPI is unavailable on this platform.
func New() (negotiate.Provider, error) {
	return nil, ErrUnsupported
}
