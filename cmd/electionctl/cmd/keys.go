package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"election-backend/auth"
	"election-backend/models"
)

// signingKeyFile is the on-disk form of an identity key.
type signingKeyFile struct {
	Identity models.Identity `json:"identity"`
	Seed     hexutil.Bytes   `json:"seed"`
}

// ballotKeyFile holds the authority's ballot encryption key pair.
type ballotKeyFile struct {
	EncryptionKey hexutil.Bytes `json:"encryption_key"`
	DecryptionKey hexutil.Bytes `json:"decryption_key"`
}

// ballotSecretFile keeps what a voter needs to reveal a commitment.
type ballotSecretFile struct {
	ElectionID string        `json:"election_id"`
	Choice     string        `json:"choice"`
	Payload    hexutil.Bytes `json:"payload"`
	Nonce      hexutil.Bytes `json:"nonce"`
	Commitment hexutil.Bytes `json:"commitment"`
}

func loadIssuer(path string) (*auth.Issuer, error) {
	var kf signingKeyFile
	if err := readJSON(path, &kf); err != nil {
		return nil, err
	}
	issuer, err := auth.IssuerFromSeed(kf.Seed)
	if err != nil {
		return nil, fmt.Errorf("failed to load key %s: %w", path, err)
	}
	if !kf.Identity.IsZero() && kf.Identity != issuer.Identity() {
		return nil, fmt.Errorf("key %s: identity does not match seed", path)
	}
	return issuer, nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// writeJSON writes v to path readable by the owner only.
func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseIdentityFlag(name, value string) (models.Identity, error) {
	id, err := models.ParseIdentity(value)
	if err != nil {
		return models.Identity{}, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return id, nil
}
