// Package signature verifies the digests declared for out-of-band artifacts in
// a template's metadata.artifacts block.
package signature

import (
	"bytes"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"hash"
	"io"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// ErrDigestMismatch is returned when content does not hash to the declared digest.
var ErrDigestMismatch = errors.New("digest mismatch")

// ErrUnknownAlgorithm is returned for algorithm names no Algorithm is registered for.
var ErrUnknownAlgorithm = errors.New("unknown digest algorithm")

// Algorithm is a named digest function.
type Algorithm struct {
	Name string
	Size int // digest length in bytes
	New  func() hash.Hash
}

func mustBlake2b(size int) func() hash.Hash {
	return func() hash.Hash {
		var (
			h   hash.Hash
			err error
		)
		if size == blake2b.Size256 {
			h, err = blake2b.New256(nil)
		} else {
			h, err = blake2b.New512(nil)
		}
		if err != nil {
			// only fails for keys longer than 64 bytes
			panic(err)
		}
		return h
	}
}

var algorithms = map[string]Algorithm{
	"sha256":     {Name: "SHA-256", Size: sha256.Size, New: sha256.New},
	"sha384":     {Name: "SHA-384", Size: sha512.Size384, New: sha512.New384},
	"sha512":     {Name: "SHA-512", Size: sha512.Size, New: sha512.New},
	"sha3256":    {Name: "SHA3-256", Size: 32, New: sha3.New256},
	"sha3512":    {Name: "SHA3-512", Size: 64, New: sha3.New512},
	"blake2b256": {Name: "BLAKE2b-256", Size: blake2b.Size256, New: mustBlake2b(blake2b.Size256)},
	"blake2b512": {Name: "BLAKE2b-512", Size: blake2b.Size, New: mustBlake2b(blake2b.Size)},
}

// normalize folds case and drops separators so "SHA-256", "sha256" and
// "Sha_256" name the same algorithm.
func normalize(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if r == '-' || r == '_' || r == ' ' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Lookup returns the algorithm registered under name.
func Lookup(name string) (Algorithm, bool) {
	alg, ok := algorithms[normalize(name)]
	return alg, ok
}

// Names returns the canonical names of all supported algorithms.
func Names() []string {
	names := make([]string, 0, len(algorithms))
	for _, alg := range algorithms {
		names = append(names, alg.Name)
	}
	sort.Strings(names)
	return names
}

// DecodeDigest decodes a padded standard base64 digest. Unpadded input and
// non-zero trailing bits are rejected.
func DecodeDigest(digest string) ([]byte, error) {
	digest = strings.TrimSpace(digest)
	if digest == "" {
		return nil, fmt.Errorf("empty digest")
	}
	raw, err := base64.StdEncoding.Strict().DecodeString(digest)
	if err != nil {
		return nil, fmt.Errorf("digest is not valid base64: %w", err)
	}
	return raw, nil
}

// Sum hashes r with alg.
func (alg Algorithm) Sum(r io.Reader) ([]byte, error) {
	h := alg.New()
	if _, err := io.Copy(h, r); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// Encode hashes r and returns the base64 digest, as written into metadata.artifacts.
func (alg Algorithm) Encode(r io.Reader) (string, error) {
	sum, err := alg.Sum(r)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sum), nil
}

// CheckDeclared validates an algorithm/digest pair without hashing anything.
// An unknown algorithm yields ErrUnknownAlgorithm; callers decide whether that
// is fatal.
func CheckDeclared(algorithm, digest string) error {
	if strings.TrimSpace(algorithm) == "" {
		return fmt.Errorf("algorithm is empty")
	}
	raw, err := DecodeDigest(digest)
	if err != nil {
		return err
	}
	alg, ok := Lookup(algorithm)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAlgorithm, algorithm)
	}
	if len(raw) != alg.Size {
		return fmt.Errorf("%s digest is %d bytes, want %d", alg.Name, len(raw), alg.Size)
	}
	return nil
}

// Verify hashes r and compares it with the declared digest.
func Verify(algorithm, digest string, r io.Reader) error {
	alg, ok := Lookup(algorithm)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAlgorithm, algorithm)
	}
	want, err := DecodeDigest(digest)
	if err != nil {
		return err
	}
	got, err := alg.Sum(r)
	if err != nil {
		return fmt.Errorf("hashing content: %w", err)
	}
	if !bytes.Equal(got, want) {
		return fmt.Errorf("%w: %s %s, computed %s", ErrDigestMismatch, alg.Name,
			digest, base64.StdEncoding.EncodeToString(got))
	}
	return nil
}
