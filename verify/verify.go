// Package verify computes content digests and compares them with the values
// a manifest declares.
package verify

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/go-git/go-billy/v5"

	"github.com/tie/launcher/models"
)

type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	SHA1   Algorithm = "sha1"
	MD5    Algorithm = "md5"
)

func (a Algorithm) new() hash.Hash {
	switch a {
	case SHA1:
		return sha1.New()
	case MD5:
		return md5.New()
	default:
		return sha256.New()
	}
}

// equal compares digests. MD5 values are compared case-insensitively,
// the others must be lower-hex.
func (a Algorithm) equal(expected, actual string) bool {
	if a == MD5 {
		return strings.EqualFold(expected, actual)
	}
	return expected == actual
}

// Sum is an expected digest.
type Sum struct {
	Algorithm Algorithm
	Expected  string
}

// Sums builds the checks for the non-empty digests of an asset.
func Sums(sha256Hex, md5Hex string) []Sum {
	var sums []Sum
	if sha256Hex != "" {
		sums = append(sums, Sum{SHA256, sha256Hex})
	}
	if md5Hex != "" {
		sums = append(sums, Sum{MD5, md5Hex})
	}
	return sums
}

type ChecksumError struct {
	Path      string
	Algorithm Algorithm
	Expected  string
	Actual    string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("%s %s: expected %s, got %s", e.Algorithm, e.Path, e.Expected, e.Actual)
}

func (e *ChecksumError) Unwrap() error {
	return models.ErrChecksumMismatch
}

// Hashes digests a stream for a set of expected sums.
type Hashes struct {
	sums   []Sum
	hashes []hash.Hash
}

func NewHashes(sums []Sum) *Hashes {
	h := &Hashes{sums: sums, hashes: make([]hash.Hash, len(sums))}
	for i, s := range sums {
		h.hashes[i] = s.Algorithm.new()
	}
	return h
}

// Writer returns a writer feeding every hash.
func (h *Hashes) Writer() io.Writer {
	ww := make([]io.Writer, len(h.hashes))
	for i, hh := range h.hashes {
		ww[i] = hh
	}
	return io.MultiWriter(ww...)
}

// Check compares the digests written so far. path is used for reporting.
func (h *Hashes) Check(path string) error {
	for i, s := range h.sums {
		actual := hex.EncodeToString(h.hashes[i].Sum(nil))
		if !s.Algorithm.equal(s.Expected, actual) {
			return &ChecksumError{
				Path:      path,
				Algorithm: s.Algorithm,
				Expected:  s.Expected,
				Actual:    actual,
			}
		}
	}
	return nil
}

// File reads path from fs and checks it against sums.
func File(fs billy.Basic, path string, sums ...Sum) error {
	f, err := fs.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	h := NewHashes(sums)
	if _, err := io.Copy(h.Writer(), f); err != nil {
		return fmt.Errorf("read %q: %w", path, err)
	}
	return h.Check(path)
}

func SHA256File(fs billy.Basic, path, expected string) error {
	return File(fs, path, Sum{SHA256, expected})
}

func MD5File(fs billy.Basic, path, expected string) error {
	return File(fs, path, Sum{MD5, expected})
}

func SHA1File(fs billy.Basic, path, expected string) error {
	return File(fs, path, Sum{SHA1, expected})
}

// Digest returns the lower-hex digest of data.
func Digest(a Algorithm, data []byte) string {
	h := a.new()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
