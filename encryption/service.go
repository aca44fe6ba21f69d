package encryption

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/crypto/ecies"

	"election-backend/models"
)

// NonceSize is the length of the random nonce mixed into a commitment.
const NonceSize = 32

// Ballot plaintext: one choice byte followed by random salt, so two ballots
// with the same choice never encrypt the same plaintext.
const BallotSize = 32

// Choice is the value sealed inside a ballot.
type Choice uint8

const (
	ChoiceNo  Choice = 0
	ChoiceYes Choice = 1
)

func (c Choice) String() string {
	if c == ChoiceYes {
		return "yes"
	}
	return "no"
}

// ParseChoice accepts "yes" or "no".
func ParseChoice(s string) (Choice, error) {
	switch s {
	case "yes":
		return ChoiceYes, nil
	case "no":
		return ChoiceNo, nil
	}
	return 0, fmt.Errorf("%w: choice must be yes or no, got %q", models.ErrInvalidArgument, s)
}

type CryptoService struct{}

func NewCryptoService() *CryptoService {
	return &CryptoService{}
}

// GenerateKeyPair generates the voting authority's ballot key pair.
func (cs *CryptoService) GenerateKeyPair() (*ecdsa.PrivateKey, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}
	return key, nil
}

// GenerateNonce generates a random nonce for a commitment
func (cs *CryptoService) GenerateNonce() ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return nonce, nil
}

// Commitment is SHA-256(payload ++ nonce).
func (cs *CryptoService) Commitment(payload, nonce []byte) []byte {
	h := sha256.New()
	h.Write(payload)
	h.Write(nonce)
	return h.Sum(nil)
}

// VerifyCommitment reports whether payload and nonce open commitment.
func (cs *CryptoService) VerifyCommitment(commitment, payload, nonce []byte) bool {
	if len(commitment) != models.CommitmentSize {
		return false
	}
	return bytes.Equal(cs.Commitment(payload, nonce), commitment)
}

// EncryptionKey is the compressed public key the authority publishes.
func (cs *CryptoService) EncryptionKey(key *ecdsa.PrivateKey) []byte {
	return crypto.CompressPubkey(&key.PublicKey)
}

// DecryptionKey is the raw private scalar released after the reveal window.
func (cs *CryptoService) DecryptionKey(key *ecdsa.PrivateKey) []byte {
	return crypto.FromECDSA(key)
}

// ParseEncryptionKey decodes a compressed secp256k1 public key.
func (cs *CryptoService) ParseEncryptionKey(raw []byte) (*ecdsa.PublicKey, error) {
	pub, err := crypto.DecompressPubkey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: encryption key: %v", models.ErrInvalidArgument, err)
	}
	return pub, nil
}

// ParseDecryptionKey decodes a raw 32-byte secp256k1 private key.
func (cs *CryptoService) ParseDecryptionKey(raw []byte) (*ecdsa.PrivateKey, error) {
	key, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: decryption key: %v", models.ErrInvalidArgument, err)
	}
	return key, nil
}

// KeysMatch reports whether the released decryption key belongs to the
// published encryption key.
func (cs *CryptoService) KeysMatch(encryptionKey, decryptionKey []byte) bool {
	key, err := crypto.ToECDSA(decryptionKey)
	if err != nil {
		return false
	}
	return bytes.Equal(crypto.CompressPubkey(&key.PublicKey), encryptionKey)
}

// EncryptBallot seals choice for the holder of encryptionKey.
func (cs *CryptoService) EncryptBallot(choice Choice, encryptionKey []byte) ([]byte, error) {
	pub, err := cs.ParseEncryptionKey(encryptionKey)
	if err != nil {
		return nil, err
	}

	plaintext := make([]byte, BallotSize)
	plaintext[0] = byte(choice)
	if _, err := rand.Read(plaintext[1:]); err != nil {
		return nil, fmt.Errorf("failed to generate ballot salt: %w", err)
	}

	ciphertext, err := ecies.Encrypt(rand.Reader, ecies.ImportECDSAPublic(pub), plaintext, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt ballot: %w", err)
	}
	return ciphertext, nil
}

// DecryptBallot opens a ballot with the released decryption key.
func (cs *CryptoService) DecryptBallot(ciphertext, decryptionKey []byte) (Choice, error) {
	key, err := cs.ParseDecryptionKey(decryptionKey)
	if err != nil {
		return 0, err
	}

	plaintext, err := ecies.ImportECDSA(key).Decrypt(ciphertext, nil, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to decrypt ballot: %v", models.ErrMalformedData, err)
	}
	if len(plaintext) != BallotSize {
		return 0, fmt.Errorf("%w: ballot is %d bytes, want %d", models.ErrMalformedData, len(plaintext), BallotSize)
	}

	switch choice := Choice(plaintext[0]); choice {
	case ChoiceYes, ChoiceNo:
		return choice, nil
	default:
		return 0, fmt.Errorf("%w: unknown ballot choice %d", models.ErrMalformedData, plaintext[0])
	}
}
