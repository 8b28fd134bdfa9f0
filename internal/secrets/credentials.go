package secrets

import (
	"errors"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeyringService groups this app's secrets in the OS keychain.
const KeyringService = "leadgen"

// GatewaySecret returns the gateway client secret for the given client id.
// Keyring first, LEADGEN_GATEWAY_SECRET env var as fallback for headless
// hosts without a keychain.
func GatewaySecret(clientID string) (string, error) {
	if strings.TrimSpace(clientID) != "" {
		if s, err := keyring.Get(KeyringService, gatewayAccount(clientID)); err == nil && strings.TrimSpace(s) != "" {
			return s, nil
		}
	}
	if s := strings.TrimSpace(os.Getenv("LEADGEN_GATEWAY_SECRET")); s != "" {
		return s, nil
	}
	return "", errors.New("gateway client secret not found (set it in keychain or LEADGEN_GATEWAY_SECRET)")
}

func SetGatewaySecret(clientID, secret string) error {
	if strings.TrimSpace(clientID) == "" {
		return errors.New("client id is empty")
	}
	if strings.TrimSpace(secret) == "" {
		return errors.New("secret is empty")
	}
	return keyring.Set(KeyringService, gatewayAccount(clientID), secret)
}

// IMAPPassword returns the password for the alerts mailbox.
// LEADGEN_IMAP_PASSWORD overrides the keychain.
func IMAPPassword(username, host string) (string, error) {
	if s := strings.TrimSpace(os.Getenv("LEADGEN_IMAP_PASSWORD")); s != "" {
		return s, nil
	}
	account := "leadgen:imap:" + username + "@" + host
	pw, err := keyring.Get(KeyringService, account)
	if err != nil || strings.TrimSpace(pw) == "" {
		return "", errors.New("IMAP password not found (set it in keychain or LEADGEN_IMAP_PASSWORD)")
	}
	return pw, nil
}

func SetIMAPPassword(username, host, password string) error {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(host) == "" {
		return errors.New("username and host are required")
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password is empty")
	}
	return keyring.Set(KeyringService, "leadgen:imap:"+username+"@"+host, password)
}

func gatewayAccount(clientID string) string {
	return "leadgen:gateway:" + clientID
}
