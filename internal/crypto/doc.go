// Package crypto verifies POS device signatures.
//
// Each point of sale holds an RSA key pair. The public half is stored on
// the points_of_sale row as base64 DER SubjectPublicKeyInfo; the device
// signs the canonical JSON form of each request body with the private half.
//
// Usage:
//
//	v, err := crypto.NewVerifier(row.PublicKey)
//	if err != nil {
//	    return err // *crypto.InitError
//	}
//	msg, _ := crypto.CanonicalJSON(body)
//	ok, err := v.Verify(msg, r.Header.Get("signature"))
package crypto
