package auth

import (
	"encoding/binary"
	"fmt"

	"election-backend/models"
)

// Algorithm tags the verifier that produced a signature record.
type Algorithm uint8

const (
	AlgorithmUnknown Algorithm = iota
	AlgorithmEd25519
	AlgorithmSecp256k1
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmEd25519:
		return "ed25519"
	case AlgorithmSecp256k1:
		return "secp256k1"
	default:
		return "unknown"
	}
}

// SignatureRecord is one entry of a signature log as handed over by the host.
type SignatureRecord struct {
	Algorithm Algorithm `json:"algorithm"`
	Payload   []byte    `json:"payload"`
}

// SignatureLog is the ordered list of records attached to one operation.
type SignatureLog []SignatureRecord

// RecordLayout pins where an algorithm's record keeps each field.
type RecordLayout struct {
	Version         uint8
	SignatureOffset int
	SignatureSize   int
	SignerOffset    int
	SignerSize      int
	MessageOffset   int
}

// MinSize is the shortest payload that holds every fixed field.
func (l RecordLayout) MinSize() int {
	return l.MessageOffset
}

// Ed25519RecordLayoutV1: signature[0:64] signer[64:96] message[96:].
var Ed25519RecordLayoutV1 = RecordLayout{
	Version:         1,
	SignatureOffset: 0,
	SignatureSize:   64,
	SignerOffset:    64,
	SignerSize:      models.IdentitySize,
	MessageOffset:   96,
}

// SignedEnvelope is a record payload split into its fields.
type SignedEnvelope struct {
	Signature []byte
	Signer    models.Identity
	Message   []byte
}

// ParseRecord splits payload according to layout. The total length is checked
// before any field is sliced.
func ParseRecord(layout RecordLayout, payload []byte) (*SignedEnvelope, error) {
	if len(payload) < layout.MinSize() {
		return nil, fmt.Errorf("%w: record is %d bytes, layout v%d needs at least %d",
			models.ErrMalformedData, len(payload), layout.Version, layout.MinSize())
	}

	signer, err := models.IdentityFromBytes(payload[layout.SignerOffset : layout.SignerOffset+layout.SignerSize])
	if err != nil {
		return nil, err
	}

	env := &SignedEnvelope{
		Signature: payload[layout.SignatureOffset : layout.SignatureOffset+layout.SignatureSize],
		Signer:    signer,
		Message:   payload[layout.MessageOffset:],
	}
	return env, nil
}

// EncodeRecord is the inverse of ParseRecord for layout v1.
func EncodeRecord(signature []byte, signer models.Identity, message []byte) []byte {
	l := Ed25519RecordLayoutV1
	out := make([]byte, l.MessageOffset+len(message))
	copy(out[l.SignatureOffset:], signature)
	copy(out[l.SignerOffset:], signer[:])
	copy(out[l.MessageOffset:], message)
	return out
}

// Certificate layout v1. The header is the Ed25519 offsets block: every field
// lives in the certificate itself, so instruction indexes are 0xFFFF.
const (
	CertificateHeaderSize   = 16
	CertificateSignerOffset = 16
	CertificateSigOffset    = 48
	CertificateMsgOffset    = 112
	CertificateMaxMessage   = 0xFFFF - CertificateMsgOffset
	certificateSelfIndex    = 0xFFFF
	certificateSignatures   = 1
	certificateSignatureLen = 64
)

// CertificateHeader is the decoded 16-byte offsets block.
type CertificateHeader struct {
	NumSignatures uint8
	Padding       uint8
	SigOffset     uint16
	SigIndex      uint16
	PubKeyOffset  uint16
	PubKeyIndex   uint16
	MsgOffset     uint16
	MsgSize       uint16
	MsgIndex      uint16
}

// ParseCertificateHeader decodes and validates the header of cert. It fails
// when the certificate is too short or the offsets differ from layout v1.
func ParseCertificateHeader(cert []byte) (*CertificateHeader, error) {
	if len(cert) < CertificateMsgOffset {
		return nil, fmt.Errorf("%w: certificate is %d bytes, need at least %d",
			models.ErrInvalidCertificate, len(cert), CertificateMsgOffset)
	}

	h := &CertificateHeader{
		NumSignatures: cert[0],
		Padding:       cert[1],
		SigOffset:     binary.LittleEndian.Uint16(cert[2:4]),
		SigIndex:      binary.LittleEndian.Uint16(cert[4:6]),
		PubKeyOffset:  binary.LittleEndian.Uint16(cert[6:8]),
		PubKeyIndex:   binary.LittleEndian.Uint16(cert[8:10]),
		MsgOffset:     binary.LittleEndian.Uint16(cert[10:12]),
		MsgSize:       binary.LittleEndian.Uint16(cert[12:14]),
		MsgIndex:      binary.LittleEndian.Uint16(cert[14:16]),
	}

	switch {
	case h.NumSignatures != certificateSignatures || h.Padding != 0:
		return nil, fmt.Errorf("%w: unsupported signature count %d", models.ErrInvalidCertificate, h.NumSignatures)
	case h.SigOffset != CertificateSigOffset || h.PubKeyOffset != CertificateSignerOffset || h.MsgOffset != CertificateMsgOffset:
		return nil, fmt.Errorf("%w: offsets do not match layout v1", models.ErrInvalidCertificate)
	case h.SigIndex != certificateSelfIndex || h.PubKeyIndex != certificateSelfIndex || h.MsgIndex != certificateSelfIndex:
		return nil, fmt.Errorf("%w: certificate references external data", models.ErrInvalidCertificate)
	case len(cert) != CertificateMsgOffset+int(h.MsgSize):
		return nil, fmt.Errorf("%w: certificate is %d bytes, header declares %d",
			models.ErrInvalidCertificate, len(cert), CertificateMsgOffset+int(h.MsgSize))
	}
	return h, nil
}

// EncodeCertificate lays out signer, signature and message in layout v1.
func EncodeCertificate(signer models.Identity, signature, message []byte) ([]byte, error) {
	if len(signature) != certificateSignatureLen {
		return nil, fmt.Errorf("%w: signature must be %d bytes", models.ErrInvalidArgument, certificateSignatureLen)
	}
	if len(message) > CertificateMaxMessage {
		return nil, fmt.Errorf("%w: message of %d bytes does not fit a certificate", models.ErrInvalidArgument, len(message))
	}

	cert := make([]byte, CertificateMsgOffset+len(message))
	cert[0] = certificateSignatures
	binary.LittleEndian.PutUint16(cert[2:4], CertificateSigOffset)
	binary.LittleEndian.PutUint16(cert[4:6], certificateSelfIndex)
	binary.LittleEndian.PutUint16(cert[6:8], CertificateSignerOffset)
	binary.LittleEndian.PutUint16(cert[8:10], certificateSelfIndex)
	binary.LittleEndian.PutUint16(cert[10:12], CertificateMsgOffset)
	binary.LittleEndian.PutUint16(cert[12:14], uint16(len(message)))
	binary.LittleEndian.PutUint16(cert[14:16], certificateSelfIndex)
	copy(cert[CertificateSignerOffset:], signer[:])
	copy(cert[CertificateSigOffset:], signature)
	copy(cert[CertificateMsgOffset:], message)
	return cert, nil
}
