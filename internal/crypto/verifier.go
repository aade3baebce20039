package crypto

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// DER prefix of a SEQUENCE with a two-byte length, which every RSA
// SubjectPublicKeyInfo of 2048 bits or more starts with.
const (
	derSequence      = 0x30
	derLongLength2   = 0x82
	pemBoundaryToken = "-----"
)

// Verifier checks device signatures and encrypts to a device's RSA public key.
//
// The public key is a base64 encoded DER SubjectPublicKeyInfo. Signatures are
// RSASSA-PKCS1-v1_5 over SHA-256; encryption is RSA-OAEP with SHA-256.
// Sign and Decrypt are only available when a private key is supplied with
// WithPrivateKey.
//
// A Verifier is immutable after construction and safe for concurrent use.
type Verifier struct {
	public  *rsa.PublicKey
	private *rsa.PrivateKey
}

// Option configures a Verifier.
type Option func(*Verifier) error

// WithPrivateKey attaches a base64 encoded PKCS#8 RSA private key.
func WithPrivateKey(pkcs8Base64 string) Option {
	return func(v *Verifier) error {
		der, err := decodeBase64(stripWhitespace(pkcs8Base64))
		if err != nil {
			return &InitError{Reason: "decoding private key", Err: err}
		}
		key, err := x509.ParsePKCS8PrivateKey(der)
		if err != nil {
			return &InitError{Reason: "parsing private key", Err: err}
		}
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return &InitError{Reason: "parsing private key", Err: ErrNotRSA}
		}
		v.private = rsaKey
		return nil
	}
}

// NewVerifier builds a Verifier from a device public key.
//
// Whitespace anywhere in the key is ignored. Keys still wrapped in PEM
// armour, keys that are not DER SubjectPublicKeyInfo, and non-RSA keys
// are rejected with an *InitError.
//
// Parameters:
//   - publicKeyBase64: base64 DER SubjectPublicKeyInfo
//   - opts: optional configuration (private key)
//
// Returns:
//   - *Verifier: ready for Verify/Encrypt
//   - error: *InitError describing why the key is unusable
func NewVerifier(publicKeyBase64 string, opts ...Option) (*Verifier, error) {
	key := stripWhitespace(publicKeyBase64)
	if key == "" {
		return nil, &InitError{Reason: "reading public key", Err: ErrEmptyKey}
	}
	if strings.Contains(key, pemBoundaryToken) {
		return nil, &InitError{Reason: "reading public key", Err: ErrPEMKey}
	}

	der, err := decodeBase64(key)
	if err != nil {
		return nil, &InitError{Reason: "decoding public key", Err: err}
	}
	if len(der) < 2 || der[0] != derSequence || der[1] != derLongLength2 {
		return nil, &InitError{Reason: "checking public key format", Err: ErrNotSPKI}
	}

	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, &InitError{Reason: "parsing public key", Err: errors.Join(ErrNotSPKI, err)}
	}
	rsaKey, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, &InitError{Reason: "parsing public key", Err: ErrNotRSA}
	}

	v := &Verifier{public: rsaKey}
	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Verify reports whether signatureBase64 is a valid RSASSA-PKCS1-v1_5
// SHA-256 signature of message under the device key.
//
// A well-formed signature that does not match returns (false, nil).
// A signature that cannot be decoded returns an *OperationError.
func (v *Verifier) Verify(message []byte, signatureBase64 string) (bool, error) {
	sig, err := decodeBase64(stripWhitespace(signatureBase64))
	if err != nil {
		return false, &OperationError{Op: "verify", Err: err}
	}
	if len(sig) == 0 {
		return false, &OperationError{Op: "verify", Err: fmt.Errorf("%w: empty signature", ErrBadEncoding)}
	}

	digest := sha256.Sum256(message)
	if err := rsa.VerifyPKCS1v15(v.public, crypto.SHA256, digest[:], sig); err != nil {
		return false, nil
	}
	return true, nil
}

// Encrypt encrypts message to the device key with RSA-OAEP/SHA-256 and
// returns the ciphertext as standard base64.
func (v *Verifier) Encrypt(message []byte) (string, error) {
	out, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, v.public, message, nil)
	if err != nil {
		return "", &OperationError{Op: "encrypt", Err: err}
	}
	return base64.StdEncoding.EncodeToString(out), nil
}

// Sign signs message with the configured private key and returns a base64
// RSASSA-PKCS1-v1_5 SHA-256 signature.
func (v *Verifier) Sign(message []byte) (string, error) {
	if v.private == nil {
		return "", &OperationError{Op: "sign", Err: ErrNoPrivateKey}
	}
	digest := sha256.Sum256(message)
	sig, err := rsa.SignPKCS1v15(rand.Reader, v.private, crypto.SHA256, digest[:])
	if err != nil {
		return "", &OperationError{Op: "sign", Err: err}
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Decrypt reverses Encrypt using the configured private key.
func (v *Verifier) Decrypt(ciphertextBase64 string) ([]byte, error) {
	if v.private == nil {
		return nil, &OperationError{Op: "decrypt", Err: ErrNoPrivateKey}
	}
	ct, err := decodeBase64(stripWhitespace(ciphertextBase64))
	if err != nil {
		return nil, &OperationError{Op: "decrypt", Err: err}
	}
	out, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, v.private, ct, nil)
	if err != nil {
		return nil, &OperationError{Op: "decrypt", Err: err}
	}
	return out, nil
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// decodeBase64 accepts padded and unpadded standard base64.
func decodeBase64(s string) ([]byte, error) {
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	b, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadEncoding, err)
	}
	return b, nil
}
