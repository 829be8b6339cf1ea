package watcher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// ContentFingerprinter hashes the whole file content with SHA256
type ContentFingerprinter struct{}

// NewContentFingerprinter creates a new content fingerprinter
func NewContentFingerprinter() *ContentFingerprinter {
	return &ContentFingerprinter{}
}

// Fingerprint generates a SHA256-based fingerprint for file content
func (f *ContentFingerprinter) Fingerprint(path string) (*Fingerprint, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return nil, fmt.Errorf("failed to hash %s: %w", path, err)
	}

	return &Fingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Hash:    hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Same ignores modification time: a rewrite with identical content is a duplicate
func (f *ContentFingerprinter) Same(a, b *Fingerprint) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Path == b.Path && a.Size == b.Size && a.Hash == b.Hash
}
