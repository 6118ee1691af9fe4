// File path: internal/kb/fingerprint.go
package kb

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FingerprintFile returns the hex SHA-256 digest of the file at path.
func FingerprintFile(path string) (string, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("open for fingerprint: %w", err)
	}
	defer file.Close()
	hasher := sha256.New()
	if _, err := io.CopyBuffer(hasher, file, make([]byte, 8192)); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// FingerprintText returns the hex SHA-256 digest of text.
func FingerprintText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// excerptFingerprint identifies the knowledge-base snapshot behind an
// excerpt. Source names are part of the digest so renames are detected.
func excerptFingerprint(sources []Source, parts []string) string {
	if len(sources) == 0 {
		return ""
	}
	hasher := sha256.New()
	for i, src := range sources {
		_, _ = hasher.Write([]byte(src.Name))
		_, _ = hasher.Write([]byte{0})
		if i < len(parts) {
			_, _ = hasher.Write([]byte(parts[i]))
		}
		_, _ = hasher.Write([]byte{0})
	}
	return hex.EncodeToString(hasher.Sum(nil))
}
