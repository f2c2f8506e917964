// Tessella - Map Configuration and Dataview Analytics Backend
// Copyright 2026 Tessella Maps
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessella-maps/tessella

package layergroup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/goccy/go-json"
)

// canonicalize reduces a configuration document to a canonical byte form:
// decode and re-encode, so key order and whitespace differences collapse.
// Equal configurations therefore always produce equal tokens.
func canonicalize(raw []byte) ([]byte, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("canonicalize configuration: %w", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicalize configuration: %w", err)
	}
	return out, nil
}

// Token derives the layergroup token for a canonical configuration. Tokens
// are scoped to the registering user, so identical configurations registered
// by different users never collide onto one entry.
func Token(user string, canonical []byte) string {
	h := sha256.New()
	h.Write([]byte(user))
	h.Write([]byte{0})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil))
}

// storeKey is the durable-store key for a user's token.
func storeKey(user, token string) string {
	return "layergroup:" + user + ":" + token
}
