package cryptox

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantLen int
	}{
		{"128-bit token", TokenSize128, 22},
		{"256-bit token", TokenSize256, 43},
		{"custom size", 24, 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := GenerateToken(tt.size)
			require.NoError(t, err)
			require.Len(t, token, tt.wantLen)

			token2, err := GenerateToken(tt.size)
			require.NoError(t, err)
			require.NotEqual(t, token, token2, "tokens should be unique")
		})
	}
}

func TestGenerateToken_InvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		token, err := GenerateToken(size)
		require.Error(t, err)
		require.Empty(t, token)
	}
}

func TestMustGenerateToken_Panics(t *testing.T) {
	require.NotEmpty(t, MustGenerateToken(TokenSize256))
	require.Panics(t, func() {
		MustGenerateToken(0)
	})
}

func TestRandomID(t *testing.T) {
	hexID := regexp.MustCompile(`^[0-9a-f]{32}$`)

	seen := make(map[string]bool, 100)
	for range 100 {
		id, err := RandomID()
		require.NoError(t, err)
		require.Regexp(t, hexID, id)
		require.NotContains(t, seen, id, "duplicate id generated")
		seen[id] = true
	}
}

func TestRandomSecret(t *testing.T) {
	b, err := RandomSecret(20)
	require.NoError(t, err)
	require.Len(t, b, 20)
	require.Len(t, EncodeHex(b), 40)

	_, err = RandomSecret(0)
	require.Error(t, err)
}

func TestRecoveryCodes(t *testing.T) {
	format := regexp.MustCompile(`^[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{4}$`)

	codes, err := RecoveryCodes(DefaultRecoveryCodeCount)
	require.NoError(t, err)
	require.Len(t, codes, 8)

	seen := make(map[string]bool)
	for _, c := range codes {
		require.Regexp(t, format, c)
		require.NotContains(t, seen, c)
		seen[c] = true
	}

	_, err = RecoveryCodes(0)
	require.Error(t, err)
}

func TestNormalizeRecoveryCode(t *testing.T) {
	require.Equal(t, "ABCD1234EF567890", NormalizeRecoveryCode("abcd-1234 ef56-7890"))
	require.Equal(t,
		FingerprintToken(NormalizeRecoveryCode("ABCD-1234-EF56-7890")),
		FingerprintToken(NormalizeRecoveryCode("abcd1234ef567890")),
	)
}

func TestFingerprintToken(t *testing.T) {
	fp1a := FingerprintToken("test-token-1")
	fp1b := FingerprintToken("test-token-1")
	fp2 := FingerprintToken("test-token-2")

	require.Equal(t, fp1a, fp1b, "fingerprint should be deterministic")
	require.NotEqual(t, fp1a, fp2, "different tokens should have different fingerprints")
	require.Len(t, fp1a, 43, "SHA-256 base64url should be 43 chars")
}
