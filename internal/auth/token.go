// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vysus Group

package auth

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/samber/oops"
)

// TokenBytes is the entropy of a minted token: 32 raw bytes (256 bits),
// rendered as 43 URL-safe characters.
const TokenBytes = 32

// MintToken draws a bearer token from the system CSPRNG. The same minter
// serves session and reset tokens; the stores keep the namespaces apart.
func MintToken() (string, error) {
	buf := make([]byte, TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", oops.Code("TOKEN_MINT_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", TokenBytes).
			Wrap(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
