package jwtx

import (
	"crypto/ed25519"
	"fmt"

	"github.com/aussiebroadwan/siteadmin/pkg/cryptox"
	"github.com/golang-jwt/jwt/v5"
)

// Signer signs session tokens with an Ed25519 key.
type Signer struct {
	kid string
	key ed25519.PrivateKey
	pub ed25519.PublicKey
}

// NewSigner loads an Ed25519 private key from PKCS8 PEM bytes.
func NewSigner(kid string, pemKey []byte) (*Signer, error) {
	key, err := cryptox.ParseSigningKey(pemKey)
	if err != nil {
		return nil, fmt.Errorf("jwtx: %w", err)
	}

	return &Signer{
		kid: kid,
		key: key,
		pub: key.Public().(ed25519.PublicKey),
	}, nil
}

// NewEphemeralSigner generates a fresh in-memory key with a random kid.
// Sessions signed by it do not survive a restart.
func NewEphemeralSigner() (*Signer, error) {
	pemKey, err := cryptox.GenerateSigningKey()
	if err != nil {
		return nil, err
	}
	token, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return nil, fmt.Errorf("jwtx: failed to generate key ID: %w", err)
	}
	return NewSigner("siteadmin-"+token, pemKey)
}

func (s *Signer) KID() string { return s.kid }

// Sign turns claims into a signed JWT string.
func (s *Signer) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}
