package auth

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"election-backend/models"
)

// Hex offsets of the certificate fields. Every byte takes two characters.
const (
	certificateSignerHexStart = 2 * CertificateSignerOffset
	certificateSignerHexEnd   = 2 * CertificateSigOffset
	certificateMsgHexStart    = 2 * CertificateMsgOffset
)

// Proof is whatever the caller attached to prove an endorsement. A non-empty
// certificate takes precedence over the signature log.
type Proof struct {
	Certificate []byte       `json:"certificate,omitempty"`
	Log         SignatureLog `json:"signature_log,omitempty"`
}

// Authenticator answers whether an identity endorsed an exact byte sequence.
type Authenticator struct {
	layout RecordLayout
}

func NewAuthenticator() *Authenticator {
	return &Authenticator{layout: Ed25519RecordLayoutV1}
}

// Verify dispatches proof to the certificate or signature log path.
func (a *Authenticator) Verify(proof Proof, signer models.Identity, message []byte) error {
	if len(proof.Certificate) > 0 {
		return a.VerifyByCertificate(signer, message, proof.Certificate)
	}
	return a.VerifyBySignatureLog(proof.Log, signer, message)
}

// VerifyBySignatureLog succeeds on the first Ed25519 record that names signer,
// carries exactly message and whose signature verifies. Records of another
// algorithm, short records and non-matching records are skipped.
func (a *Authenticator) VerifyBySignatureLog(log SignatureLog, signer models.Identity, message []byte) error {
	for _, record := range log {
		if record.Algorithm != AlgorithmEd25519 {
			continue
		}
		env, err := ParseRecord(a.layout, record.Payload)
		if err != nil {
			continue
		}
		if env.Signer != signer || !bytes.Equal(env.Message, message) {
			continue
		}
		if !ed25519.Verify(env.Signer[:], env.Message, env.Signature) {
			continue
		}
		return nil
	}
	return fmt.Errorf("%w: signer %s over %d-byte message", models.ErrInvalidSignature, signer, len(message))
}

// VerifyByCertificate checks that cert was issued by signer over message.
// Fields are compared at fixed offsets of the hex encoding, never searched for.
func (a *Authenticator) VerifyByCertificate(signer models.Identity, message, cert []byte) error {
	header, err := ParseCertificateHeader(cert)
	if err != nil {
		return err
	}
	if int(header.MsgSize) != len(message) {
		return fmt.Errorf("%w: certificate message is %d bytes, expected %d",
			models.ErrInvalidCertificate, header.MsgSize, len(message))
	}

	certHex := hex.EncodeToString(cert)
	signerHex := hex.EncodeToString(signer[:])
	messageHex := hex.EncodeToString(message)

	if certHex[certificateSignerHexStart:certificateSignerHexEnd] != signerHex {
		return fmt.Errorf("%w: signer mismatch", models.ErrInvalidCertificate)
	}
	if certHex[certificateMsgHexStart:certificateMsgHexStart+len(messageHex)] != messageHex {
		return fmt.Errorf("%w: message mismatch", models.ErrInvalidCertificate)
	}

	signature := cert[CertificateSigOffset:CertificateMsgOffset]
	if !ed25519.Verify(signer[:], message, signature) {
		return fmt.Errorf("%w: signature does not verify", models.ErrInvalidCertificate)
	}
	return nil
}
