package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"election-backend/models"
)

// Issuer holds an Ed25519 key and produces the proofs the Authenticator
// accepts. It stands in for the off-band authorizer and for wallets.
type Issuer struct {
	key ed25519.PrivateKey
}

// GenerateIssuer creates an issuer with a fresh random key.
func GenerateIssuer() (*Issuer, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	return &Issuer{key: priv}, nil
}

// IssuerFromSeed restores an issuer from its 32-byte seed.
func IssuerFromSeed(seed []byte) (*Issuer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: seed must be %d bytes, got %d", models.ErrMalformedData, ed25519.SeedSize, len(seed))
	}
	return &Issuer{key: ed25519.NewKeyFromSeed(seed)}, nil
}

func (i *Issuer) Identity() models.Identity {
	var id models.Identity
	copy(id[:], i.key.Public().(ed25519.PublicKey))
	return id
}

// Seed returns the private seed for persisting the key.
func (i *Issuer) Seed() []byte {
	return i.key.Seed()
}

func (i *Issuer) Sign(message []byte) []byte {
	return ed25519.Sign(i.key, message)
}

// SignRecord returns a signature log record for message.
func (i *Issuer) SignRecord(message []byte) SignatureRecord {
	return SignatureRecord{
		Algorithm: AlgorithmEd25519,
		Payload:   EncodeRecord(i.Sign(message), i.Identity(), message),
	}
}

// SignLog is a one-record signature log for message.
func (i *Issuer) SignLog(message []byte) SignatureLog {
	return SignatureLog{i.SignRecord(message)}
}

// IssueCertificate returns a standalone certificate for message.
func (i *Issuer) IssueCertificate(message []byte) ([]byte, error) {
	return EncodeCertificate(i.Identity(), i.Sign(message), message)
}
