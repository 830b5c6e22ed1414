package cryptox

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// fastKDF keeps the table tests quick; KDFv1 itself is exercised separately.
var fastKDF = KDFParams{Version: 1, Iterations: 1000, KeyLength: 64}

func TestHash_Deterministic(t *testing.T) {
	h := NewHasher(fastKDF, "")
	salt := []byte("0123456789abcdef")

	a := h.Hash("CorrectHorseBattery9", salt)
	b := h.Hash("CorrectHorseBattery9", salt)

	require.Equal(t, a.Key, b.Key)
	require.Len(t, a.Key, 64)
	require.Equal(t, fastKDF, a.Params)
}

func TestVerify_RoundTripAndMutations(t *testing.T) {
	h := NewHasher(fastKDF, "")

	passwords := []string{
		"CorrectHorseBattery9",
		"P@ssw0rd!#$%^&*()",
		strings.Repeat("a", 100),
		"пароль🔒密码",
		"   spaces   ",
	}

	for _, pw := range passwords {
		t.Run(pw, func(t *testing.T) {
			salt, err := NewSalt()
			require.NoError(t, err)

			d := h.Hash(pw, salt)
			require.True(t, h.Verify(pw, salt, d))

			// Every single-character mutation must fail.
			runes := []rune(pw)
			for i := range runes {
				mutated := append([]rune(nil), runes...)
				mutated[i]++
				require.False(t, h.Verify(string(mutated), salt, d), "mutation at %d verified", i)
			}

			require.False(t, h.Verify(pw+"x", salt, d))
			require.False(t, h.Verify(string(runes[:len(runes)-1]), salt, d))
		})
	}
}

func TestVerify_WrongSalt(t *testing.T) {
	h := NewHasher(fastKDF, "")
	d := h.Hash("CorrectHorseBattery9", []byte("salt-one-1234567"))
	require.False(t, h.Verify("CorrectHorseBattery9", []byte("salt-two-1234567"), d))
}

func TestVerify_UsesStoredParams(t *testing.T) {
	old := NewHasher(KDFParams{Version: 1, Iterations: 500, KeyLength: 32}, "")
	encoded, err := old.HashPassword("upgrade-me-please")
	require.NoError(t, err)

	current := NewHasher(KDFParams{Version: 2, Iterations: 800, KeyLength: 64}, "")
	require.NoError(t, current.VerifyPassword("upgrade-me-please", encoded))
	require.True(t, current.NeedsRehash(encoded))
	require.False(t, old.NeedsRehash(encoded))
}

func TestNeedsRehash(t *testing.T) {
	encoded, err := NewHasher(fastKDF, "").HashPassword("upgrade-me-please")
	require.NoError(t, err)

	tests := []struct {
		name   string
		params KDFParams
		want   bool
	}{
		{"same params", fastKDF, false},
		{"raised iterations, same version", KDFParams{Version: 1, Iterations: 2000, KeyLength: 64}, true},
		{"lowered iterations", KDFParams{Version: 1, Iterations: 500, KeyLength: 64}, false},
		{"different key length", KDFParams{Version: 1, Iterations: 1000, KeyLength: 32}, true},
		{"newer version", KDFParams{Version: 2, Iterations: 1000, KeyLength: 64}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, NewHasher(tt.params, "").NeedsRehash(encoded))
		})
	}

	require.True(t, NewHasher(fastKDF, "").NeedsRehash("not-a-digest"))
}

func TestVerify_Pepper(t *testing.T) {
	salt := []byte("0123456789abcdef")
	peppered := NewHasher(fastKDF, "pepper-a")
	d := peppered.Hash("CorrectHorseBattery9", salt)

	require.True(t, peppered.Verify("CorrectHorseBattery9", salt, d))
	require.False(t, NewHasher(fastKDF, "pepper-b").Verify("CorrectHorseBattery9", salt, d))
	require.False(t, NewHasher(fastKDF, "").Verify("CorrectHorseBattery9", salt, d))
}

func TestHashPassword_UniqueSalts(t *testing.T) {
	h := NewHasher(fastKDF, "")

	hash1, err := h.HashPassword("samepassword")
	require.NoError(t, err)
	hash2, err := h.HashPassword("samepassword")
	require.NoError(t, err)

	require.NotEqual(t, hash1, hash2, "hashes should differ due to unique salts")
	require.NoError(t, h.VerifyPassword("samepassword", hash1))
	require.NoError(t, h.VerifyPassword("samepassword", hash2))
}

func TestEncode_Format(t *testing.T) {
	encoded, err := Hasher{}.HashPassword("CorrectHorseBattery9")
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(encoded, "$pbkdf2-sha512$v=1$i=100000,l=64$"))

	d, err := ParseDigest(encoded)
	require.NoError(t, err)
	require.Equal(t, KDFv1, d.Params)
	require.Len(t, d.Salt, SaltLength)
	require.Len(t, d.Key, 64)
	require.Equal(t, encoded, d.Encode())
}

func TestVerifyPassword_WrongPassword(t *testing.T) {
	h := NewHasher(fastKDF, "")
	hash, err := h.HashPassword("correct-password")
	require.NoError(t, err)

	for _, wrong := range []string{"wrong-password", "Correct-Password", "correct-password ", "", "correct-passwor"} {
		err := h.VerifyPassword(wrong, hash)
		require.ErrorIs(t, err, ErrPasswordMismatch)
	}
}

func TestParseDigest_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
	}{
		{"empty", ""},
		{"argon2", "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA"},
		{"missing parts", "$pbkdf2-sha512$v=1$i=1000"},
		{"malformed parameters", "$pbkdf2-sha512$v=1$invalid$c2FsdA$aGFzaA"},
		{"zero iterations", "$pbkdf2-sha512$v=1$i=0,l=4$c2FsdA$aGFzaA"},
		{"bad salt", "$pbkdf2-sha512$v=1$i=1000,l=4$!!!$aGFzaA"},
		{"length mismatch", "$pbkdf2-sha512$v=1$i=1000,l=64$c2FsdA$aGFzaA"},
		{"bad version", "$pbkdf2-sha512$v=x$i=1000,l=4$c2FsdA$aGFzaA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDigest(tt.encoded)
			require.ErrorIs(t, err, ErrInvalidDigest)
			require.Error(t, Hasher{}.VerifyPassword("pw", tt.encoded))
		})
	}
}

func TestLoadOrGeneratePepper(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pepper")

	first, err := LoadOrGeneratePepper(path)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	second, err := LoadOrGeneratePepper(path)
	require.NoError(t, err)
	require.Equal(t, first, second)

	none, err := LoadOrGeneratePepper("")
	require.NoError(t, err)
	require.Empty(t, none)
}
