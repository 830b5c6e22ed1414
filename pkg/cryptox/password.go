package cryptox

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// SaltLength is the number of random bytes generated per password salt.
const SaltLength = 16

// kdfName is the algorithm identifier written into encoded digests.
const kdfName = "pbkdf2-sha512"

// KDFParams are the work-factor parameters of a password digest. They are
// stored next to every hash so they can be raised without breaking
// verification of older digests.
type KDFParams struct {
	Version    int // Bumped whenever Iterations or KeyLength change
	Iterations int
	KeyLength  int
}

// KDFv1 is PBKDF2-HMAC-SHA512, 100k iterations, 64-byte key.
var KDFv1 = KDFParams{Version: 1, Iterations: 100_000, KeyLength: 64}

// DefaultKDF is the parameter set used for new hashes.
var DefaultKDF = KDFv1

var (
	ErrInvalidDigest    = errors.New("cryptox: invalid digest format")
	ErrPasswordMismatch = errors.New("password does not match")
)

// Digest is a derived password credential together with the salt and
// parameters that produced it.
type Digest struct {
	Params KDFParams
	Salt   []byte
	Key    []byte
}

// Hasher derives and verifies salted password digests. The zero value uses
// DefaultKDF with no pepper.
type Hasher struct {
	Params KDFParams
	Pepper string // Appended to the password before derivation, optional
}

// NewHasher returns a Hasher for the given parameters and pepper.
func NewHasher(params KDFParams, pepper string) Hasher {
	return Hasher{Params: params, Pepper: pepper}
}

func (h Hasher) params() KDFParams {
	if h.Params.Iterations <= 0 || h.Params.KeyLength <= 0 {
		return DefaultKDF
	}
	return h.Params
}

// Hash derives a digest from password and salt with the hasher's parameters.
func (h Hasher) Hash(password string, salt []byte) Digest {
	p := h.params()
	return Digest{
		Params: p,
		Salt:   append([]byte(nil), salt...),
		Key:    h.derive(password, salt, p),
	}
}

// Verify recomputes the digest with the digest's own parameters and compares
// it in constant time.
func (h Hasher) Verify(password string, salt []byte, digest Digest) bool {
	if digest.Params.Iterations <= 0 || len(digest.Key) == 0 {
		return false
	}
	computed := h.derive(password, salt, KDFParams{
		Version:    digest.Params.Version,
		Iterations: digest.Params.Iterations,
		KeyLength:  len(digest.Key),
	})
	return subtle.ConstantTimeCompare(computed, digest.Key) == 1
}

func (h Hasher) derive(password string, salt []byte, p KDFParams) []byte {
	return pbkdf2.Key([]byte(password+h.Pepper), salt, p.Iterations, p.KeyLength, sha512.New)
}

// HashPassword generates a fresh salt and returns the encoded digest.
func (h Hasher) HashPassword(password string) (string, error) {
	salt, err := NewSalt()
	if err != nil {
		return "", err
	}
	return h.Hash(password, salt).Encode(), nil
}

// VerifyPassword compares a plaintext password against an encoded digest.
func (h Hasher) VerifyPassword(password, encoded string) error {
	d, err := ParseDigest(encoded)
	if err != nil {
		return err
	}
	if !h.Verify(password, d.Salt, d) {
		return ErrPasswordMismatch
	}
	return nil
}

// NeedsRehash reports whether encoded was produced with weaker or different
// parameters than the hasher's current ones. A raised iteration count counts
// even when the version label was left unchanged.
func (h Hasher) NeedsRehash(encoded string) bool {
	d, err := ParseDigest(encoded)
	if err != nil {
		return true
	}
	p := h.params()
	return d.Params.Version < p.Version ||
		d.Params.Iterations < p.Iterations ||
		d.Params.KeyLength != p.KeyLength
}

// NewSalt returns SaltLength bytes from crypto/rand.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("cryptox: failed to generate salt: %w", err)
	}
	return salt, nil
}

// Encode returns the PHC-style form:
//
//	$pbkdf2-sha512$v=1$i=100000,l=64$<salt>$<key>
func (d Digest) Encode() string {
	return fmt.Sprintf(
		"$%s$v=%d$i=%d,l=%d$%s$%s",
		kdfName,
		d.Params.Version,
		d.Params.Iterations,
		len(d.Key),
		base64.RawStdEncoding.EncodeToString(d.Salt),
		base64.RawStdEncoding.EncodeToString(d.Key),
	)
}

// ParseDigest decodes the output of Digest.Encode.
func ParseDigest(encoded string) (Digest, error) {
	// ["", "pbkdf2-sha512", "v=1", "i=100000,l=64", "salt", "key"]
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return Digest{}, fmt.Errorf("%w: expected 6 parts", ErrInvalidDigest)
	}
	if parts[1] != kdfName {
		return Digest{}, fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidDigest, parts[1])
	}

	var p KDFParams
	if _, err := fmt.Sscanf(parts[2], "v=%d", &p.Version); err != nil || p.Version <= 0 {
		return Digest{}, fmt.Errorf("%w: bad version", ErrInvalidDigest)
	}
	if _, err := fmt.Sscanf(parts[3], "i=%d,l=%d", &p.Iterations, &p.KeyLength); err != nil {
		return Digest{}, fmt.Errorf("%w: failed to parse parameters: %w", ErrInvalidDigest, err)
	}
	if p.Iterations <= 0 || p.KeyLength <= 0 {
		return Digest{}, fmt.Errorf("%w: non-positive parameters", ErrInvalidDigest)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return Digest{}, fmt.Errorf("%w: failed to decode salt", ErrInvalidDigest)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) != p.KeyLength {
		return Digest{}, fmt.Errorf("%w: failed to decode key", ErrInvalidDigest)
	}

	return Digest{Params: p, Salt: salt, Key: key}, nil
}
