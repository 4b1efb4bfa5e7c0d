package config

import (
	"fmt"

	"github.com/google/uuid"
)

// EnsureAPIToken returns the server's bearer token, generating and persisting
// one on first start. An explicit token (env or config file) always wins.
func EnsureAPIToken(cfg *Config) (string, error) {
	if cfg.Server.APIToken != "" {
		return cfg.Server.APIToken, nil
	}

	token := uuid.New().String()
	b := newFileBackend()
	if err := b.SetString("server.api_token", token); err != nil {
		return "", fmt.Errorf("persisting api token: %w", err)
	}
	cfg.Server.APIToken = token
	return token, nil
}
