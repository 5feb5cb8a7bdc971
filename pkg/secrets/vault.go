package secrets

import (
	"context"
	"sync"

	"github.com/hashicorp/vault/api"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// VaultConfig configures the "vault" resolver, backed by a HashiCorp Vault KV path.
type VaultConfig struct {
	Address   string `yaml:"address"`
	Token     string `yaml:"token"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace,omitempty"`
}

func (v VaultConfig) Validate() error {
	if v.Address == "" {
		return errors.New("Vault address is required")
	}
	if v.Token == "" {
		return errors.New("Vault token is required")
	}
	if v.Path == "" {
		return errors.New("Vault path is required")
	}
	return nil
}

// CreateClient builds an authenticated Vault API client.
func (v VaultConfig) CreateClient() (*api.Client, error) {
	if err := v.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid Vault configuration")
	}

	cfg := api.DefaultConfig()
	cfg.Address = v.Address

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Vault client")
	}
	client.SetToken(v.Token)
	if v.Namespace != "" {
		client.SetNamespace(v.Namespace)
	}
	return client, nil
}

// LogicalReader is the subset of *api.Logical used by VaultSecretLoader.
type LogicalReader interface {
	ReadWithContext(ctx context.Context, path string) (*api.Secret, error)
}

// VaultSecretLoader reads keys from a single Vault path. KV v1 and KV v2 engines
// are both supported. The path is read once and cached for the loader's lifetime.
//
//	refresh_token: ${vault:passwork_refresh_token}
type VaultSecretLoader struct {
	logical LogicalReader
	path    string

	once sync.Once
	data map[string]any
	err  error
}

func NewVaultSecretLoader(client *api.Client, path string) *VaultSecretLoader {
	return NewVaultSecretLoaderWithReader(client.Logical(), path)
}

// NewVaultSecretLoaderWithReader is NewVaultSecretLoader over any LogicalReader.
func NewVaultSecretLoaderWithReader(logical LogicalReader, path string) *VaultSecretLoader {
	return &VaultSecretLoader{logical: logical, path: path}
}

func (v *VaultSecretLoader) load() (map[string]any, error) {
	v.once.Do(func() {
		secret, err := v.logical.ReadWithContext(context.Background(), v.path)
		if err != nil {
			v.err = errors.Wrapf(err, "failed to read secret from Vault path %q", v.path)
			return
		}
		if secret == nil || secret.Data == nil {
			v.err = errors.Errorf("no secret found at Vault path %q", v.path)
			return
		}

		// KV v2 nests the payload under "data"
		if nested, present := secret.Data["data"]; present && nested != nil {
			dataMap, ok := nested.(map[string]any)
			if !ok {
				v.err = errors.Errorf("unexpected data format in KV v2 secret at %q", v.path)
				return
			}
			v.data = dataMap
			return
		}
		v.data = secret.Data
	})
	return v.data, v.err
}

func (v *VaultSecretLoader) Resolve(key string) (string, error) {
	data, err := v.load()
	if err != nil {
		return "", err
	}

	value, ok := data[key].(string)
	if !ok {
		return "", errors.Errorf("secret %q not found in Vault at path %q", key, v.path)
	}
	log.Debug().Str("secret_name", key).Str("vault_path", v.path).Msg("Retrieved secret from Vault")
	return value, nil
}

func (v *VaultSecretLoader) Name() string {
	return "Vault"
}
