package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// Token size constants (in bytes before encoding).
const (
	// TokenSize64 provides 64 bits of entropy, used for recovery codes.
	TokenSize64 = 8
	// TokenSize128 provides 128 bits of entropy (22 chars base64url).
	TokenSize128 = 16
	// TokenSize256 provides 256 bits of entropy (43 chars base64url).
	TokenSize256 = 32
)

// DefaultRecoveryCodeCount is the number of recovery codes issued per identity.
const DefaultRecoveryCodeCount = 8

// RandomSecret returns n bytes from crypto/rand.
func RandomSecret(n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("secret size must be positive, got %d", n)
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return buf, nil
}

// EncodeHex renders b as lowercase hex.
func EncodeHex(b []byte) string { return hex.EncodeToString(b) }

// EncodeBase64URL renders b as unpadded base64url.
func EncodeBase64URL(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }

// RandomID returns a 128-bit random identifier as 32 lowercase hex chars.
func RandomID() (string, error) {
	b, err := RandomSecret(TokenSize128)
	if err != nil {
		return "", err
	}
	return EncodeHex(b), nil
}

// GenerateToken creates a cryptographically secure random token of the
// specified byte length, base64url-encoded without padding.
//
// Common sizes:
//   - TokenSize128 (16 bytes): short-lived tokens
//   - TokenSize256 (32 bytes): invitation tokens (recommended)
func GenerateToken(size int) (string, error) {
	b, err := RandomSecret(size)
	if err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return EncodeBase64URL(b), nil
}

// MustGenerateToken is like GenerateToken but panics on error.
// Use this only during initialization or in contexts where failure is unrecoverable.
func MustGenerateToken(size int) string {
	token, err := GenerateToken(size)
	if err != nil {
		panic(fmt.Sprintf("cryptox: failed to generate token: %v", err))
	}
	return token
}

// RecoveryCodes returns count independent codes, each TokenSize64 random
// bytes in uppercase hex grouped as XXXX-XXXX-XXXX-XXXX.
func RecoveryCodes(count int) ([]string, error) {
	if count <= 0 {
		return nil, fmt.Errorf("recovery code count must be positive, got %d", count)
	}
	codes := make([]string, count)
	for i := range codes {
		b, err := RandomSecret(TokenSize64)
		if err != nil {
			return nil, fmt.Errorf("failed to generate recovery code: %w", err)
		}
		codes[i] = groupCode(strings.ToUpper(EncodeHex(b)))
	}
	return codes, nil
}

// NormalizeRecoveryCode strips separators and whitespace and uppercases the
// code so user-typed input fingerprints the same as the issued form.
func NormalizeRecoveryCode(code string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(code) {
		if r == '-' || r == ' ' || r == '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func groupCode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i += 4 {
		if i > 0 {
			b.WriteByte('-')
		}
		end := min(i+4, len(s))
		b.WriteString(s[i:end])
	}
	return b.String()
}

// FingerprintToken returns a deterministic SHA-256 fingerprint of a token.
// This is used to store hashed tokens, allowing lookup without storing the
// original token value.
//
// The fingerprint is returned as a base64url-encoded string (43 chars).
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
