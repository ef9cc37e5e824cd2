package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// LoadOrCreateSecret reads a hex encoded signing secret from path. A missing
// file is created with a fresh random secret readable only by its owner.
func LoadOrCreateSecret(path string) ([]byte, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path is from trusted config
	if err == nil {
		secret, err := hex.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("load secret %s: %w", path, err)
		}
		if len(secret) < MinSecretLength {
			return nil, fmt.Errorf("load secret %s: secret must be at least %d bytes", path, MinSecretLength)
		}
		return secret, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load secret %s: %w", path, err)
	}

	secret := make([]byte, MinSecretLength)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create secret dir: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600) //nolint:gosec // Path is from trusted config
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			// Lost a race with another process creating the same file
			return LoadOrCreateSecret(path)
		}
		return nil, fmt.Errorf("create secret %s: %w", path, err)
	}

	_, writeErr := f.WriteString(hex.EncodeToString(secret) + "\n")
	if closeErr := f.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		return nil, fmt.Errorf("write secret %s: %w", path, writeErr)
	}

	slog.Info("generated signing secret", "path", path)
	return secret, nil
}
