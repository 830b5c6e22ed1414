package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// pepperLength is the number of random bytes in a generated pepper.
const pepperLength = 32

// LoadOrGeneratePepper loads the pepper from file, generating and writing a
// new one (mode 0600) if the file does not exist. An empty path disables the
// pepper and returns "".
func LoadOrGeneratePepper(file string) (string, error) {
	if file == "" {
		return "", nil
	}

	file = filepath.Clean(file)
	if err := os.MkdirAll(filepath.Dir(file), 0750); err != nil {
		return "", err
	}

	data, err := os.ReadFile(file)
	if err == nil {
		return strings.TrimSpace(string(data)), nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	buf := make([]byte, pepperLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	pepper := base64.RawURLEncoding.EncodeToString(buf)

	if err := os.WriteFile(file, []byte(pepper), 0600); err != nil {
		return "", err
	}
	return pepper, nil
}
