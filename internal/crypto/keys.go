package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"fmt"
)

// DefaultKeyBits is the RSA modulus size used when provisioning devices.
const DefaultKeyBits = 2048

// KeyPair is a device key pair in the encodings the platform stores and ships.
type KeyPair struct {
	// PublicKey is base64 DER SubjectPublicKeyInfo, stored in points_of_sale.public_key.
	PublicKey string
	// PrivateKey is base64 DER PKCS#8, kept on the device.
	PrivateKey string
}

// GenerateKeyPair creates a new RSA key pair for a POS device.
func GenerateKeyPair(bits int) (*KeyPair, error) {
	if bits <= 0 {
		bits = DefaultKeyBits
	}
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("generating rsa key: %w", err)
	}

	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("encoding public key: %w", err)
	}
	priv, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("encoding private key: %w", err)
	}

	return &KeyPair{
		PublicKey:  base64.StdEncoding.EncodeToString(pub),
		PrivateKey: base64.StdEncoding.EncodeToString(priv),
	}, nil
}

// PublicKeyFor returns the base64 SubjectPublicKeyInfo matching a base64
// PKCS#8 RSA private key.
func PublicKeyFor(privateKeyBase64 string) (string, error) {
	der, err := decodeBase64(stripWhitespace(privateKeyBase64))
	if err != nil {
		return "", &InitError{Reason: "decoding private key", Err: err}
	}
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return "", &InitError{Reason: "parsing private key", Err: err}
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return "", &InitError{Reason: "parsing private key", Err: ErrNotRSA}
	}
	pub, err := x509.MarshalPKIXPublicKey(&rsaKey.PublicKey)
	if err != nil {
		return "", fmt.Errorf("encoding public key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(pub), nil
}
