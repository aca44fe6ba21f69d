package models

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// IdentitySize is the length of a raw Ed25519 public identity.
const IdentitySize = 32

// Identity is the public key a party signs with. Its textual form is base58,
// which is also the form used inside canonical messages.
type Identity [IdentitySize]byte

// ParseIdentity decodes a base58 identity string.
func ParseIdentity(s string) (Identity, error) {
	var id Identity
	raw, err := base58.Decode(s)
	if err != nil {
		return id, fmt.Errorf("%w: identity is not base58: %v", ErrMalformedData, err)
	}
	if len(raw) != IdentitySize {
		return id, fmt.Errorf("%w: identity must be %d bytes, got %d", ErrMalformedData, IdentitySize, len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

// IdentityFromBytes copies a raw 32-byte public key into an Identity.
func IdentityFromBytes(raw []byte) (Identity, error) {
	var id Identity
	if len(raw) != IdentitySize {
		return id, fmt.Errorf("%w: identity must be %d bytes, got %d", ErrMalformedData, IdentitySize, len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

func (id Identity) String() string {
	return base58.Encode(id[:])
}

// Bytes returns a copy of the raw key.
func (id Identity) Bytes() []byte {
	out := make([]byte, IdentitySize)
	copy(out, id[:])
	return out
}

// IsZero reports whether the identity is unset.
func (id Identity) IsZero() bool {
	return id == Identity{}
}

func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *Identity) UnmarshalText(text []byte) error {
	parsed, err := ParseIdentity(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
