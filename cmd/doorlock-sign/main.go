// doorlock-sign signs a JSON payload with a lock's private key and prints
// the envelope the service expects from that lock.
//
// Usage:
//
//	doorlock-sign --key lock.pem '{"smart_lock_MAC":"AA:BB:CC:DD:EE:FF","type":1}'
//	echo '{...}' | doorlock-sign --key lock.pem
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/nerrad567/doorlock-core/internal/signature"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run parses args, reads the payload from the first positional argument or
// stdin, and writes the envelope JSON to out.
func run(args []string, in io.Reader, out io.Writer) error {
	flags := pflag.NewFlagSet("doorlock-sign", pflag.ContinueOnError)
	keyPath := flags.StringP("key", "k", "", "PEM RSA private key of the lock (PKCS#1 or PKCS#8)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *keyPath == "" {
		return errors.New("--key is required")
	}

	pemKey, err := os.ReadFile(*keyPath)
	if err != nil {
		return fmt.Errorf("reading key: %w", err)
	}
	key, err := signature.ParsePrivateKey(pemKey)
	if err != nil {
		return err
	}

	var payload []byte
	if flags.NArg() > 0 {
		payload = []byte(flags.Arg(0))
	} else {
		if payload, err = io.ReadAll(in); err != nil {
			return fmt.Errorf("reading payload: %w", err)
		}
	}
	payload = bytes.TrimSpace(payload)

	// The signed bytes must be exactly what the service receives, so the
	// payload is only compacted, never re-encoded from a decoded value.
	var compact bytes.Buffer
	if err := json.Compact(&compact, payload); err != nil {
		return fmt.Errorf("payload is not JSON: %w", err)
	}

	sig, err := signature.Sign(compact.Bytes(), key)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(signature.Envelope{Signature: sig, Data: compact.String()})
}
