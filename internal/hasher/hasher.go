// Package hasher computes content digests for duplicate verification.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// chunkSize is the read size for streaming hashing (8KiB).
const chunkSize = 8192

// ReadError reports a file that could not be opened or read for hashing.
// Callers must exclude the file from matching; a partial read never yields
// a digest.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return e.Path + ": " + e.Err.Error()
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// HashFile computes the SHA-256 digest of a file's contents, reading
// sequentially in chunkSize blocks until EOF.
//
// Returns the digest as a fixed-length hex string, or a *ReadError if the
// file cannot be opened or a read fails partway.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &ReadError{Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	buf := make([]byte, chunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			_, _ = h.Write(buf[:n]) // hash.Hash never errors
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", &ReadError{Path: path, Err: err}
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
