package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword reads a password without echo from the terminal, or the
// first line of stdin with --password-stdin. Only the line terminator is
// stripped; surrounding spaces are part of the password.
func readPassword(prompt string) ([]byte, error) {
	if passwordStdin {
		return readPasswordLine(stdin)
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, errors.New("interactive password prompting requires a terminal, use --password-stdin")
	}

	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	return password, nil
}

func readPasswordLine(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	return line, nil
}

// readNewPassword asks twice when prompting interactively
func readNewPassword(label string) ([]byte, error) {
	password, err := readPassword(label + ": ")
	if err != nil || passwordStdin {
		return password, err
	}

	again, err := readPassword("Confirm " + strings.ToLower(label) + ": ")
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(password, again) {
		return nil, errors.New("passwords do not match")
	}
	return password, nil
}

// confirm asks a yes/no question on the terminal
func confirm(prompt string) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, errors.New("interactive prompting requires a terminal, use --yes")
	}

	fmt.Fprint(os.Stderr, prompt+" (y/n): ")
	response, err := stdin.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("failed to read response: %w", err)
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes", nil
}
