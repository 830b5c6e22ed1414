package service

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/siteadmin/pkg/cryptox"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// DefaultMFAIssuer labels TOTP entries in authenticator apps.
const DefaultMFAIssuer = "SiteAdmin"

// secondFactor is the enrollment material generated for every new identity.
type secondFactor struct {
	Secret        string
	URL           string
	RecoveryCodes []string
	CodeHashes    []string // Fingerprints of the normalized recovery codes
}

func newSecondFactor(issuer, username string) (secondFactor, error) {
	if issuer == "" {
		issuer = DefaultMFAIssuer
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: username,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return secondFactor{}, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	codes, err := cryptox.RecoveryCodes(cryptox.DefaultRecoveryCodeCount)
	if err != nil {
		return secondFactor{}, err
	}
	hashes := make([]string, len(codes))
	for i, c := range codes {
		hashes[i] = recoveryCodeHash(c)
	}

	return secondFactor{
		Secret:        key.Secret(),
		URL:           key.URL(),
		RecoveryCodes: codes,
		CodeHashes:    hashes,
	}, nil
}

func recoveryCodeHash(code string) string {
	return cryptox.FingerprintToken(cryptox.NormalizeRecoveryCode(code))
}

// VerifySecondFactor checks code as a TOTP code and then as a recovery code.
// A matching recovery code is consumed. It returns the method that matched,
// or "" when neither did.
func (c *CredentialStore) VerifySecondFactor(ctx context.Context, identityID, secret, code string) (string, error) {
	if code == "" {
		return "", nil
	}
	if secret != "" && totp.Validate(code, secret) {
		return methodTOTP, nil
	}

	ok, err := c.Store.RecoveryCodes().Consume(ctx, identityID, recoveryCodeHash(code))
	if err != nil {
		return "", err
	}
	if ok {
		return methodRecoveryCode, nil
	}
	return "", nil
}

const (
	methodTOTP         = "totp"
	methodRecoveryCode = "recovery_code"
)
