// Copyright 2024-2026 Aiku AI

package galene

import (
	"encoding/hex"

	"go.mau.fi/util/random"
)

// clientIDBytes is the number of random bytes in a generated client id.
const clientIDBytes = 16

// NewClientID returns a random client identity: 16 bytes, hex encoded.
func NewClientID() string {
	return hex.EncodeToString(random.Bytes(clientIDBytes))
}
