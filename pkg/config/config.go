// Package config loads the passwork-examples configuration.
//
// A configuration file is YAML (.yaml, .yml) or TOML (.toml). String values
// may reference secrets as ${prefix:key}; see package secrets for the
// available prefixes. Without a file, DefaultConfig reads the PASSWORK_*
// environment variables.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/animalet/passwork-go/internal/expansion"
	"github.com/animalet/passwork-go/pkg/secrets"
	"github.com/animalet/passwork-go/pkg/tokenstore"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// DefaultTimeout bounds a whole command when passwork.timeout is unset.
const DefaultTimeout = 30 * time.Second

type Validatable interface {
	Validate() error
}

// ClientFactory is a configuration section that can open the client it
// describes, e.g. secrets.VaultConfig or tokenstore.Config.
type ClientFactory[T any] interface {
	Validatable
	CreateClient() (T, error)
}

type (
	Config struct {
		Passwork     PassworkConfig            `yaml:"passwork"`
		Vault        *secrets.VaultConfig      `yaml:"vault,omitempty"`
		AWS          *secrets.AWSConfig        `yaml:"aws,omitempty"`
		FileResolver *secrets.FileSecretConfig `yaml:"file_resolver,omitempty"`
		TokenStore   *tokenstore.Config        `yaml:"token_store,omitempty"`

		// raw keeps every top level section for Section lookups.
		raw map[string]any
	}

	// PassworkConfig holds the connection settings shared by every example.
	PassworkConfig struct {
		Host               string        `yaml:"host" validate:"required,url"`
		AccessToken        string        `yaml:"access_token"`
		RefreshToken       string        `yaml:"refresh_token,omitempty"`
		MasterKey          string        `yaml:"master_key,omitempty"`
		Timeout            time.Duration `yaml:"timeout,omitempty" validate:"gte=0"`
		UserAgent          string        `yaml:"user_agent,omitempty"`
		InsecureSkipVerify bool          `yaml:"insecure_skip_verify,omitempty"`
	}
)

var validate = validator.New()

// Validate runs the struct tag rules and the Validate method of every
// configured section.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "configuration is invalid")
	}
	sections := map[string]Validatable{}
	if c.Vault != nil {
		sections["vault"] = c.Vault
	}
	if c.AWS != nil {
		sections["aws"] = c.AWS
	}
	if c.FileResolver != nil {
		sections["file_resolver"] = c.FileResolver
	}
	if c.TokenStore != nil {
		sections["token_store"] = c.TokenStore
	}
	for name, section := range sections {
		if err := section.Validate(); err != nil {
			return errors.Wrapf(err, "%s configuration is invalid", name)
		}
	}
	return nil
}

// EffectiveTimeout returns Timeout or DefaultTimeout when unset.
func (p PassworkConfig) EffectiveTimeout() time.Duration {
	if p.Timeout <= 0 {
		return DefaultTimeout
	}
	return p.Timeout
}

// DefaultConfig is the configuration used without a file: every Passwork
// setting comes from the environment.
func DefaultConfig() *Config {
	return &Config{
		Passwork: PassworkConfig{
			Host:         "${env:PASSWORK_HOST}",
			AccessToken:  "${env:PASSWORK_ACCESS_TOKEN}",
			RefreshToken: "${env:PASSWORK_REFRESH_TOKEN}",
			MasterKey:    "${env:PASSWORK_MASTER_KEY}",
		},
		raw: map[string]any{},
	}
}

// ReadConfig decodes file without expanding or validating it.
func ReadConfig(file string) (*Config, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read configuration file %q", file)
	}

	raw := map[string]any{}
	switch ext := strings.ToLower(filepath.Ext(file)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	case ".toml":
		err = toml.Unmarshal(data, &raw)
	default:
		return nil, errors.Errorf("unsupported configuration format %q, use .yaml, .yml or .toml", ext)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse configuration file %q", file)
	}

	// TOML is normalised through YAML so both formats share the same field
	// tags and duration parsing.
	cfg := &Config{}
	if err = decodeSection(raw, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to decode configuration file %q", file)
	}
	cfg.raw = raw
	return cfg, nil
}

// Load reads file (or DefaultConfig when file is empty), loads .env files,
// registers the secret resolvers the file configures, expands every
// ${prefix:key} reference and validates the result.
//
// The .env next to the configuration file is loaded first, then the one in
// the working directory. Variables already set in the environment win.
func Load(file string) (*Config, error) {
	loadDotEnv(file)

	cfg := DefaultConfig()
	if file != "" {
		var err error
		if cfg, err = ReadConfig(file); err != nil {
			return nil, err
		}
	}

	if err := cfg.registerResolvers(secrets.Default); err != nil {
		return nil, err
	}
	if err := cfg.expand(secrets.Default); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotEnv(file string) {
	candidates := []string{".env"}
	if file != "" {
		candidates = append([]string{filepath.Join(filepath.Dir(file), ".env")}, candidates...)
	}
	seen := map[string]bool{}
	for _, candidate := range candidates {
		abs, err := filepath.Abs(candidate)
		if err != nil || seen[abs] {
			continue
		}
		seen[abs] = true
		if _, err := os.Stat(abs); err != nil {
			continue
		}
		if err := godotenv.Load(abs); err != nil {
			log.Warn().Err(err).Str("file", abs).Msg("Failed to load .env file")
			continue
		}
		log.Debug().Str("file", abs).Msg("Loaded .env file")
	}
}

// registerResolvers adds the vault, aws and file resolvers configured in c.
// Their own settings are expanded first so they may use ${env:...}.
func (c *Config) registerResolvers(registry *secrets.Registry) error {
	if c.FileResolver != nil {
		if err := expansion.Expand(c.FileResolver, registry.Resolve); err != nil {
			return errors.Wrap(err, "failed to expand file_resolver configuration")
		}
		loader, err := c.FileResolver.CreateClient()
		if err != nil {
			return errors.Wrap(err, "failed to create file resolver")
		}
		registry.Register("file", loader)
	}

	if c.Vault != nil {
		if err := expansion.Expand(c.Vault, registry.Resolve); err != nil {
			return errors.Wrap(err, "failed to expand vault configuration")
		}
		client, err := c.Vault.CreateClient()
		if err != nil {
			return errors.Wrap(err, "failed to create Vault client")
		}
		registry.Register("vault", secrets.NewVaultSecretLoader(client, c.Vault.Path))
	}

	if c.AWS != nil {
		if err := expansion.Expand(c.AWS, registry.Resolve); err != nil {
			return errors.Wrap(err, "failed to expand aws configuration")
		}
		client, err := c.AWS.CreateClient()
		if err != nil {
			return errors.Wrap(err, "failed to create AWS Secrets Manager client")
		}
		registry.Register("aws", secrets.NewAWSSecretLoader(client, c.AWS.SecretName))
	}
	return nil
}

func (c *Config) expand(registry *secrets.Registry) error {
	if err := expansion.Expand(&c.Passwork, registry.Resolve); err != nil {
		return errors.Wrap(err, "failed to expand passwork configuration")
	}
	if err := expansion.Expand(c.TokenStore, registry.Resolve); err != nil {
		return errors.Wrap(err, "failed to expand token_store configuration")
	}
	return nil
}

// Section decodes the top level section key into T, expands its references
// with the default registry and validates it. A missing section yields nil.
func Section[T Validatable](cfg *Config, key string) (*T, error) {
	value, ok := cfg.raw[key]
	if !ok {
		return nil, nil
	}

	section := new(T)
	if err := decodeSection(value, section); err != nil {
		return nil, errors.Wrapf(err, "failed to decode %q section", key)
	}
	if err := expansion.Expand(section, secrets.Default.Resolve); err != nil {
		return nil, errors.Wrapf(err, "failed to expand %q section", key)
	}
	if err := (*section).Validate(); err != nil {
		return nil, errors.Wrapf(err, "%s configuration is invalid", key)
	}
	return section, nil
}

func decodeSection(value any, out any) error {
	data, err := yaml.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "error marshalling to YAML")
	}
	return yaml.Unmarshal(data, out)
}
