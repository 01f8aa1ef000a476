// Package fingerprint computes the dedup key that groups occurrences of the
// same underlying fault.
package fingerprint

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	delimiter = "|"
	// Width is the length of every fingerprint, fallback included.
	Width = sha1.Size * 2
)

// Engine computes fingerprints. The zero value uses SHA-1.
type Engine struct {
	newHash func() hash.Hash
}

// New returns an engine using SHA-1.
func New() *Engine {
	return &Engine{newHash: sha1.New}
}

// Compute returns the fingerprint for an occurrence. path is normalised
// before hashing.
func (e *Engine) Compute(errorID, path, method, tenantID string) string {
	input := strings.Join([]string{
		errorID,
		NormalizePath(path),
		strings.ToUpper(method),
		tenantID,
	}, delimiter)

	newHash := sha1.New
	if e != nil && e.newHash != nil {
		newHash = e.newHash
	}

	sum, err := digest(newHash, input)
	if err != nil {
		return Fallback(errorID)
	}
	return sum
}

// Compute uses the default engine.
func Compute(errorID, path, method, tenantID string) string {
	return New().Compute(errorID, path, method, tenantID)
}

func digest(newHash func() hash.Hash, input string) (sum string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hash panicked: %v", r)
		}
	}()

	h := newHash()
	if _, err := h.Write([]byte(input)); err != nil {
		return "", err
	}
	sum = hex.EncodeToString(h.Sum(nil))
	if len(sum) != Width {
		return "", fmt.Errorf("unexpected digest width %d", len(sum))
	}
	return sum, nil
}

// Fallback derives a fixed-width fingerprint from the error id alone.
func Fallback(errorID string) string {
	return fmt.Sprintf("%0*x", Width, xxhash.Sum64String(errorID))
}
