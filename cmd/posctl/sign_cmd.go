package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nerrad567/venue-core/internal/auth"
	"github.com/nerrad567/venue-core/internal/crypto"
)

func (c *cli) runSign(args []string) int {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	fs.SetOutput(c.errOut)

	var posID string
	var key string
	var keyFile string
	var body string
	var inPath string
	var headers bool
	fs.StringVar(&posID, "pos-id", "", "point of sale id")
	fs.StringVar(&key, "key", "", "base64 PKCS#8 private key")
	fs.StringVar(&keyFile, "key-file", "", "file holding the base64 PKCS#8 private key")
	fs.StringVar(&body, "body", "", "JSON request body")
	fs.StringVar(&inPath, "in", "", "read the JSON request body from a file (- for stdin)")
	fs.BoolVar(&headers, "headers", false, "print request headers instead of the bare signature")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if posID == "" {
		fmt.Fprintln(c.errOut, "sign: --pos-id is required")
		return 1
	}
	if (key == "") == (keyFile == "") {
		fmt.Fprintln(c.errOut, "sign: exactly one of --key or --key-file is required")
		return 1
	}
	if body != "" && inPath != "" {
		fmt.Fprintln(c.errOut, "sign: --body and --in are mutually exclusive")
		return 1
	}

	if keyFile != "" {
		data, err := os.ReadFile(keyFile)
		if err != nil {
			fmt.Fprintf(c.errOut, "sign: reading key: %v\n", err)
			return 1
		}
		key = string(data)
	}

	payload := []byte(body)
	if inPath != "" {
		data, err := c.readInput(inPath)
		if err != nil {
			fmt.Fprintf(c.errOut, "sign: reading body: %v\n", err)
			return 1
		}
		payload = data
	}

	message, err := signingMessage(payload, posID)
	if err != nil {
		fmt.Fprintf(c.errOut, "sign: %v\n", err)
		return 1
	}

	signature, err := sign(key, message)
	if err != nil {
		fmt.Fprintf(c.errOut, "sign: %v\n", err)
		return 1
	}

	if headers {
		fmt.Fprintf(c.out, "%s: %s\n", auth.HeaderPOSID, posID)
		fmt.Fprintf(c.out, "%s: %s\n", auth.HeaderSignature, signature)
		return 0
	}
	fmt.Fprintln(c.out, signature)
	return 0
}

func (c *cli) readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(c.in)
	}
	return os.ReadFile(path)
}

// signingMessage returns the canonical bytes a device signs. An empty or
// null body signs {"data": posID}.
func signingMessage(body []byte, posID string) ([]byte, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return crypto.CanonicalValue(map[string]any{"data": posID})
	}
	message, err := crypto.CanonicalJSON(trimmed)
	if err != nil {
		return nil, fmt.Errorf("canonicalizing body: %w", err)
	}
	return message, nil
}

func sign(privateKey string, message []byte) (string, error) {
	privateKey = strings.TrimSpace(privateKey)
	publicKey, err := crypto.PublicKeyFor(privateKey)
	if err != nil {
		return "", err
	}
	signer, err := crypto.NewVerifier(publicKey, crypto.WithPrivateKey(privateKey))
	if err != nil {
		return "", err
	}
	return signer.Sign(message)
}
