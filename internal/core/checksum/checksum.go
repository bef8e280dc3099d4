// Package checksum stream-hashes a finished download and compares it
// against an expected value (component C10).
package checksum

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"os"
	"strings"

	"github.com/arlofen/fetchcore/internal/core/task"
)

const streamBufferSize = 64 * 1024

func newHasher(algo task.ChecksumAlgorithm) (hash.Hash, error) {
	switch algo {
	case task.ChecksumMD5:
		return md5.New(), nil
	case task.ChecksumSHA256:
		return sha256.New(), nil
	case task.ChecksumCRC32:
		return crc32.NewIEEE(), nil
	default:
		return nil, fmt.Errorf("unsupported checksum algorithm %q", algo)
	}
}

// Calculate streams path through algo's hasher and returns the
// resulting hex digest.
func Calculate(path string, algo task.ChecksumAlgorithm) (string, error) {
	h, err := newHasher(algo)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", &task.FileError{Path: path, Err: err}
	}
	defer f.Close()

	buf := make([]byte, streamBufferSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", &task.FileError{Path: path, Err: err}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify computes path's checksum and compares it case-insensitively
// against expectedHex.
func Verify(path, expectedHex string, algo task.ChecksumAlgorithm) (bool, error) {
	actual, err := Calculate(path, algo)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(actual, expectedHex), nil
}
