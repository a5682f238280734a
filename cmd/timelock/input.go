package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"timelock/internal/seal"
)

// maxInputSize bounds what readInput accepts. encrypted_data for a
// MaxMessageSize message is larger than the message itself.
const maxInputSize = 2 * seal.MaxMessageSize

var errNoInput = errors.New("no input provided (use a file path or pipe to stdin)")

// readInput reads from the file at path, or from in when path is empty.
// An interactive terminal on in counts as no input.
func readInput(in io.Reader, path string) ([]byte, error) {
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("cannot open file: %w", err)
		}
		defer file.Close()

		info, err := file.Stat()
		if err != nil {
			return nil, fmt.Errorf("cannot stat file: %w", err)
		}
		if info.Size() > maxInputSize {
			return nil, fmt.Errorf("input exceeds maximum size of %d bytes", maxInputSize)
		}
		in = file
	} else if isTerminal(in) {
		return nil, errNoInput
	}

	data, err := io.ReadAll(io.LimitReader(in, maxInputSize+1))
	if err != nil {
		return nil, fmt.Errorf("cannot read input: %w", err)
	}
	if len(data) > maxInputSize {
		return nil, fmt.Errorf("input exceeds maximum size of %d bytes", maxInputSize)
	}
	if len(data) == 0 {
		return nil, errNoInput
	}
	return data, nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
