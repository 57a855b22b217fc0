package identity

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// DefaultKeyPath returns ~/.relaykv/key.txt, falling back to the working
// directory when the home directory is unknown.
func DefaultKeyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".relaykv", "key.txt")
}

// LoadOrGenerate reads the secret stored at path. If the file is missing or
// holds an invalid secret, a new identity is generated and written there.
// The returned bool reports whether a new identity was created.
func LoadOrGenerate(path string) (*Keys, bool, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, false, fmt.Errorf("create key directory: %w", err)
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		keys, perr := Parse(string(data))
		if perr == nil {
			slog.Debug("loaded existing key", "path", path)
			return keys, false, nil
		}
		slog.Warn("invalid key found, generating a new one", "path", path, "error", perr)
	case !errors.Is(err, fs.ErrNotExist):
		return nil, false, fmt.Errorf("read key file: %w", err)
	}

	keys, err := Generate()
	if err != nil {
		return nil, false, err
	}
	if err := Save(path, keys); err != nil {
		return nil, false, err
	}
	slog.Info("new key generated", "path", path, "pubkey", keys.PublicKey())
	return keys, true, nil
}

// Save writes the secret seed of keys to path with owner-only permissions.
func Save(path string, keys *Keys) error {
	if err := os.WriteFile(path, []byte(keys.Secret()+"\n"), 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	return nil
}
