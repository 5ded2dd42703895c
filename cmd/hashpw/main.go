// Command hashpw prints a credential hash for a password read from stdin,
// for provisioning admin users out of band.
//
//	printf '%s' "$PASSWORD" | hashpw
//	hashpw -verify 'salt:key' < password.txt
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"newsroom/admin/internal/password"
)

func main() {
	verify := flag.String("verify", "", "check stdin against this stored hash instead of hashing")
	flag.Parse()

	if err := run(os.Stdin, os.Stdout, *verify); err != nil {
		fmt.Fprintf(os.Stderr, "hashpw: %v\n", err)
		os.Exit(1)
	}
}

func run(in io.Reader, out io.Writer, stored string) error {
	pw, err := readPassword(in)
	if err != nil {
		return err
	}

	if stored != "" {
		if !password.Verify(pw, stored) {
			return errors.New("password does not match")
		}
		_, err := fmt.Fprintln(out, "ok")
		return err
	}

	hash, err := password.Hash(pw)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, hash)
	return err
}

// readPassword returns the first line of in without its line ending.
func readPassword(in io.Reader) (string, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", password.ErrEmptyPassword
	}
	return line, nil
}
