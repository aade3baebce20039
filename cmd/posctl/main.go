// Command posctl provisions and exercises POS device keys.
//
// keygen prints a fresh RSA key pair: the public key goes into
// points_of_sale.public_key and the private key onto the device. sign
// produces the signature header a device sends for a given request body.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// cli carries the streams commands read from and write to.
type cli struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

func main() {
	c := &cli{in: os.Stdin, out: os.Stdout, errOut: os.Stderr}
	os.Exit(c.run(os.Args))
}

func (c *cli) run(args []string) int {
	if len(args) < 2 {
		c.usage(args)
		return 1
	}

	switch args[1] {
	case "keygen":
		return c.runKeygen(args[2:])
	case "sign":
		return c.runSign(args[2:])
	}

	c.usage(args)
	return 1
}

func (c *cli) usage(args []string) {
	name := "posctl"
	if len(args) > 0 && args[0] != "" {
		name = filepath.Base(args[0])
	}
	fmt.Fprintf(c.errOut, "usage:\n")
	fmt.Fprintf(c.errOut, "  %s keygen [--bits <n>] [--format text|env]\n", name)
	fmt.Fprintf(c.errOut, "  %s sign --pos-id <id> (--key <pkcs8-base64>|--key-file <file>) [--body <json>|--in <file|->] [--headers]\n", name)
}
