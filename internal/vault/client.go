package vault

import (
	"context"
	"fmt"

	"github.com/hashicorp/vault/api"

	"dommerportal/internal/config"
)

// Client wraps HashiCorp Vault API for reading KV secrets
type Client struct {
	client *api.Client
}

// NewClient creates a new Vault client
func NewClient(cfg *config.VaultConfig) (*Client, error) {
	apiConfig := api.DefaultConfig()
	apiConfig.Address = cfg.Address

	client, err := api.NewClient(apiConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)

	return &Client{client: client}, nil
}

// GetSecret reads all key/value pairs at the given KV v2 path
func (c *Client) GetSecret(ctx context.Context, path string) (map[string]string, error) {
	secret, err := c.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("secret %s not found", path)
	}

	// KV v2 wraps the payload in a "data" field
	data := secret.Data
	if nested, ok := secret.Data["data"].(map[string]interface{}); ok {
		data = nested
	}

	values := make(map[string]string, len(data))
	for key, value := range data {
		if str, ok := value.(string); ok {
			values[key] = str
		}
	}

	return values, nil
}

// Health checks Vault availability
func (c *Client) Health(ctx context.Context) error {
	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}
	if !health.Initialized || health.Sealed {
		return fmt.Errorf("vault not ready: initialized=%v sealed=%v", health.Initialized, health.Sealed)
	}
	return nil
}
