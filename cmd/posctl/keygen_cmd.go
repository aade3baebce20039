package main

import (
	"flag"
	"fmt"

	"github.com/nerrad567/venue-core/internal/crypto"
)

func (c *cli) runKeygen(args []string) int {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(c.errOut)

	var bits int
	var format string
	fs.IntVar(&bits, "bits", crypto.DefaultKeyBits, "RSA modulus size")
	fs.StringVar(&format, "format", "text", "output format: text or env")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if bits < 2048 {
		fmt.Fprintln(c.errOut, "keygen: --bits must be at least 2048")
		return 1
	}

	keys, err := crypto.GenerateKeyPair(bits)
	if err != nil {
		fmt.Fprintf(c.errOut, "keygen: %v\n", err)
		return 1
	}

	switch format {
	case "text":
		fmt.Fprintf(c.out, "public_key: %s\n", keys.PublicKey)
		fmt.Fprintf(c.out, "private_key: %s\n", keys.PrivateKey)
	case "env":
		fmt.Fprintf(c.out, "POS_PUBLIC_KEY=%s\n", keys.PublicKey)
		fmt.Fprintf(c.out, "POS_PRIVATE_KEY=%s\n", keys.PrivateKey)
	default:
		fmt.Fprintf(c.errOut, "keygen: unknown format %q\n", format)
		return 1
	}
	return 0
}
