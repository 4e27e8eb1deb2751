// Package fingerprint computes BLAKE3 content hashes of workbook bytes.
// The audit ledger stores one fingerprint before and one after a change.
package fingerprint

import (
	"encoding/hex"
	"io"
	"os"

	"github.com/zeebo/blake3"

	"github.com/cellnote/cellnote/core/errors"
)

// Hash returns the hex BLAKE3 hash of data.
func Hash(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}

// HashReader hashes everything r yields.
func HashReader(r io.Reader) (string, error) {
	h := blake3.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", errors.NewIO("hash", "stream", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashFile hashes the content of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.NewIO("open", path, err)
	}
	defer f.Close()
	sum, err := HashReader(f)
	if err != nil {
		return "", errors.NewIO("hash", path, err)
	}
	return sum, nil
}

// Short returns the leading 12 hex digits, enough for display.
func Short(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:12]
}
