package jwtx

import (
	"crypto/ed25519"
	"fmt"

	"github.com/aussiebroadwan/siteadmin/pkg/cryptox"
)

// KeyManager bundles the signer, its KeySet and a matching verifier.
type KeyManager struct {
	Signer   *Signer
	Verifier Verifier
	KeySet   *KeySet
}

// NewKeyManager uses a persistent PEM key. The kid is derived from the
// public key so tokens stay valid across restarts.
func NewKeyManager(issuer string, pemKey []byte) (*KeyManager, error) {
	key, err := cryptox.ParseSigningKey(pemKey)
	if err != nil {
		return nil, fmt.Errorf("jwtx: %w", err)
	}
	kid := "siteadmin-" + cryptox.FingerprintToken(string(key.Public().(ed25519.PublicKey)))[:16]

	signer, err := NewSigner(kid, pemKey)
	if err != nil {
		return nil, err
	}
	return newKeyManager(issuer, signer)
}

// NewEphemeralKeyManager generates a single in-memory signing key. All
// sessions become invalid when the process restarts.
func NewEphemeralKeyManager(issuer string) (*KeyManager, error) {
	signer, err := NewEphemeralSigner()
	if err != nil {
		return nil, fmt.Errorf("jwtx: failed to generate signer: %w", err)
	}
	return newKeyManager(issuer, signer)
}

func newKeyManager(issuer string, signer *Signer) (*KeyManager, error) {
	if issuer == "" {
		return nil, fmt.Errorf("jwtx: issuer is required")
	}

	keys := NewKeySet()
	keys.AddSigner(signer)

	return &KeyManager{
		Signer:   signer,
		Verifier: NewVerifier(keys, issuer),
		KeySet:   keys,
	}, nil
}

// IsReady returns true if the KeyManager has valid keys loaded.
func (km *KeyManager) IsReady() bool {
	return km != nil && km.KeySet.IsReady()
}
