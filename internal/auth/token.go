package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	defaultSecretService = "driverlog"
	tokenAccount         = "api_token"
	dbKeyAccount         = "db_key"
)

var (
	keyringGet    = keyring.Get
	keyringSet    = keyring.Set
	keyringDelete = keyring.Delete
)

// LoadToken loads the remote API bearer token.
//
// Order of precedence:
// 1) DRIVERLOG_TOKEN environment variable.
// 2) OS keyring item referenced by service/account.
func LoadToken() (string, error) {
	if token := strings.TrimSpace(os.Getenv("DRIVERLOG_TOKEN")); token != "" {
		return token, nil
	}

	token, err := loadFromKeyring(tokenAccount)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", errors.New("api token is empty")
	}
	return token, nil
}

// SaveToken stores the API token in the system credential store.
func SaveToken(token string) error {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return errors.New("api token cannot be empty")
	}
	return saveToKeyring(tokenAccount, trimmed)
}

// DeleteToken removes a stored token. A missing item is not an error.
func DeleteToken() error {
	service := envOrDefault("DRIVERLOG_KEYCHAIN_SERVICE", defaultSecretService)
	if err := keyringDelete(service, tokenAccount); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete keyring item service=%q account=%q: %w", service, tokenAccount, err)
	}
	return nil
}

// LoadDBKey returns the SQLCipher key for the local database.
func LoadDBKey() (string, error) {
	if key := strings.TrimSpace(os.Getenv("DRIVERLOG_DB_KEY")); key != "" {
		return key, nil
	}
	return loadFromKeyring(dbKeyAccount)
}

func SaveDBKey(key string) error {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return errors.New("db key cannot be empty")
	}
	return saveToKeyring(dbKeyAccount, trimmed)
}

func saveToKeyring(account, secret string) error {
	service := envOrDefault("DRIVERLOG_KEYCHAIN_SERVICE", defaultSecretService)
	if err := keyringSet(service, account, secret); err != nil {
		return fmt.Errorf(
			"failed to store keyring item service=%q account=%q: %w",
			service,
			account,
			err,
		)
	}
	return nil
}

func loadFromKeyring(account string) (string, error) {
	service := envOrDefault("DRIVERLOG_KEYCHAIN_SERVICE", defaultSecretService)

	secret, err := keyringGet(service, account)
	if err != nil {
		return "", fmt.Errorf(
			"failed to read keyring item service=%q account=%q: %w",
			service,
			account,
			err,
		)
	}
	return strings.TrimSpace(secret), nil
}

func envOrDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
