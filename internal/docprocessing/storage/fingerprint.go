package storage

import (
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint hashes the content of r with xxhash64 and returns it as hex
func Fingerprint(r io.Reader) (string, error) {
	h := xxhash.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hash document: %w", err)
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

// FingerprintFile hashes the file at path
func FingerprintFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open document: %w", err)
	}
	defer f.Close()
	return Fingerprint(f)
}
