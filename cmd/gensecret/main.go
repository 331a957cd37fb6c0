// Command gensecret prints a random secret suitable for SECRET_KEY
package main

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

// 32 bytes is enough for HS256 and paseto. HS512 wants 64
const (
	DefaultBytesLen = 32
	MinBytesLen     = 32
)

func main() {
	if err := run(os.Stdout, rand.Reader, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error while generating secret key: %v\n", err)
		os.Exit(1)
	}
}

func run(w io.Writer, random io.Reader, args []string) error {
	fs := pflag.NewFlagSet("gensecret", pflag.ContinueOnError)
	n := fs.IntP("bytes", "n", DefaultBytesLen, "Secret length in bytes")
	encoding := fs.StringP("encoding", "e", "hex", "Output encoding (hex, base64)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *n < MinBytesLen {
		return fmt.Errorf("secret shorter than %d bytes is too weak", MinBytesLen)
	}

	b := make([]byte, *n)
	if _, err := io.ReadFull(random, b); err != nil {
		return err
	}

	var secret string
	switch *encoding {
	case "hex":
		secret = hex.EncodeToString(b)
	case "base64":
		secret = base64.RawURLEncoding.EncodeToString(b)
	default:
		return fmt.Errorf("unknown encoding %q", *encoding)
	}

	_, err := fmt.Fprintln(w, secret)
	return err
}
