// Package token issues and verifies per-board capability tokens. Only a
// salted BLAKE3 hash of a token is ever stored.
package token

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
)

// Prefix marks raw board tokens so they are recognisable in logs and
// secret scanners.
const Prefix = "cb_"

const (
	rawBytes  = 32
	saltBytes = 16
)

// Hashed is the stored form of a token.
type Hashed struct {
	Hash string // hex BLAKE3(salt || raw)
	Salt string // hex
}

// dummy is compared against when there is nothing stored, so a missing board
// costs the same as a wrong token.
var dummy = Hashed{
	Hash: strings.Repeat("0", 64),
	Salt: strings.Repeat("0", saltBytes*2),
}

// Issue generates a new raw token and its stored form. The raw value must be
// handed to the caller once and then forgotten.
func Issue() (string, Hashed, error) {
	raw := make([]byte, rawBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", Hashed{}, fmt.Errorf("token: generate: %w", err)
	}
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", Hashed{}, fmt.Errorf("token: generate salt: %w", err)
	}
	tok := Prefix + hex.EncodeToString(raw)
	saltHex := hex.EncodeToString(salt)
	return tok, Hashed{Hash: hash(saltHex, tok), Salt: saltHex}, nil
}

// Verify reports whether presented matches stored. A nil stored value always
// fails, after doing the same amount of work as a real comparison.
func Verify(stored *Hashed, presented string) bool {
	target := stored
	if target == nil {
		target = &dummy
	}
	got := hash(target.Salt, presented)
	ok := subtle.ConstantTimeCompare([]byte(got), []byte(target.Hash)) == 1
	return ok && stored != nil && presented != ""
}

func hash(saltHex, raw string) string {
	h := blake3.New()
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		// A corrupt salt still hashes so timing stays uniform; it can never match.
		salt = []byte(saltHex)
	}
	h.Write(salt)
	h.Write([]byte(raw))
	return hex.EncodeToString(h.Sum(nil))
}
