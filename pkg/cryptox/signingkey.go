package cryptox

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrInvalidSigningKey = errors.New("cryptox: invalid Ed25519 signing key")

// GenerateSigningKey returns a new Ed25519 private key as PKCS8 PEM.
func GenerateSigningKey() ([]byte, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to generate Ed25519 key: %w", err)
	}

	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to marshal PKCS8 key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// ParseSigningKey decodes a PKCS8 PEM Ed25519 private key.
func ParseSigningKey(pemKey []byte) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil || block.Type != "PRIVATE KEY" {
		return nil, ErrInvalidSigningKey
	}

	priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSigningKey, err)
	}
	key, ok := priv.(ed25519.PrivateKey)
	if !ok {
		return nil, ErrInvalidSigningKey
	}
	return key, nil
}

// LoadOrGenerateSigningKey reads a PEM signing key from file, generating and
// writing one (mode 0600) if the file does not exist.
func LoadOrGenerateSigningKey(file string) ([]byte, error) {
	file = filepath.Clean(file)
	data, err := os.ReadFile(file)
	if err == nil {
		if _, err := ParseSigningKey(data); err != nil {
			return nil, err
		}
		return data, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(file), 0750); err != nil {
		return nil, err
	}
	pemKey, err := GenerateSigningKey()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(file, pemKey, 0600); err != nil {
		return nil, err
	}
	return pemKey, nil
}
