package config

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const keyringService = "clickaudit"

// SetSecret stores a profile password in the OS keyring.
func SetSecret(profile, password string) error {
	if err := keyring.Set(keyringService, profile, password); err != nil {
		return fmt.Errorf("failed to save password to keyring: %w", err)
	}
	return nil
}

// GetSecret returns the stored password for a profile, or "" when none
// was saved.
func GetSecret(profile string) (string, error) {
	password, err := keyring.Get(keyringService, profile)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get password from keyring: %w", err)
	}
	return password, nil
}

func DeleteSecret(profile string) error {
	if err := keyring.Delete(keyringService, profile); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete password from keyring: %w", err)
	}
	return nil
}
