package crypto

import (
	"errors"
	"fmt"
)

// Sentinel causes carried inside InitError and OperationError.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrEmptyKey is returned when no key material is supplied.
	ErrEmptyKey = errors.New("crypto: key is empty")

	// ErrPEMKey is returned when the key still carries PEM armour.
	ErrPEMKey = errors.New("crypto: key must be bare base64 DER, not PEM")

	// ErrNotSPKI is returned when the decoded key is not a DER SubjectPublicKeyInfo.
	ErrNotSPKI = errors.New("crypto: key is not a DER SubjectPublicKeyInfo")

	// ErrNotRSA is returned when the key parses but is not an RSA key.
	ErrNotRSA = errors.New("crypto: key is not RSA")

	// ErrNoPrivateKey is returned by Sign and Decrypt when no private key was configured.
	ErrNoPrivateKey = errors.New("crypto: no private key configured")

	// ErrBadEncoding is returned when a signature or ciphertext is not valid base64.
	ErrBadEncoding = errors.New("crypto: invalid base64 encoding")
)

// InitError reports that a Verifier could not be built from the supplied key.
// It is fatal for the request that supplied the key.
type InitError struct {
	Reason string
	Err    error
}

func (e *InitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("crypto init: %s: %v", e.Reason, e.Err)
	}
	return "crypto init: " + e.Reason
}

func (e *InitError) Unwrap() error { return e.Err }

// OperationError reports a structural failure while signing, verifying,
// encrypting or decrypting. A signature that simply does not match is not
// an OperationError.
type OperationError struct {
	Op  string
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("crypto %s: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }
