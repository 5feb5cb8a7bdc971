package secrets

import (
	"os"

	"github.com/rs/zerolog/log"
)

// EnvResolver resolves properties from environment variables.
//
//	access_token: ${PASSWORK_ACCESS_TOKEN}      # implicit
//	access_token: ${env:PASSWORK_ACCESS_TOKEN}  # explicit
type EnvResolver struct {
	lookup func(string) (string, bool)
}

func NewEnvResolver() *EnvResolver {
	return &EnvResolver{lookup: os.LookupEnv}
}

// Resolve returns the variable's value. A missing variable resolves to the empty
// string, like os.Expand does, and is logged as a warning.
func (e *EnvResolver) Resolve(key string) (string, error) {
	value, ok := e.lookup(key)
	if !ok || value == "" {
		log.Warn().Str("env_var", key).Msg("Environment variable not set or empty - using empty string")
		return "", nil
	}
	log.Debug().Str("env_var", key).Msg("Retrieved value from environment variable")
	return value, nil
}

func (e *EnvResolver) Name() string {
	return "Environment"
}
