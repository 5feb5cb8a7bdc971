// Package secrets resolves secret references such as "vault:refresh_token" or
// "file:master_key" used in the passwork configuration.
//
// A reference is split at its first colon into a prefix and a key. The prefix
// selects a registered PropertyResolver; a reference without a prefix is
// resolved from the environment.
package secrets

import (
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// PropertyResolver retrieves a secret value for a key.
//
// Example implementations:
//   - EnvResolver: environment variables
//   - FileSecretLoader: files in a secrets directory (Docker/Kubernetes secrets)
//   - VaultSecretLoader: a HashiCorp Vault KV path
//   - AWSSecretLoader: an AWS Secrets Manager secret
type PropertyResolver interface {
	// Resolve returns the value stored under key (without the prefix).
	Resolve(key string) (string, error)

	// Name is a human-readable name used in logs and error messages.
	Name() string
}

// Registry maps reference prefixes to resolvers. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	resolvers map[string]PropertyResolver
}

// NewRegistry returns a registry with the "env" resolver registered.
func NewRegistry() *Registry {
	r := &Registry{resolvers: make(map[string]PropertyResolver)}
	r.resolvers["env"] = NewEnvResolver()
	return r
}

// Default is the registry used by the package-level functions and by config expansion.
var Default = NewRegistry()

// Register binds a resolver to prefix, replacing (with a warning) any previous one.
// The prefix is given without the trailing colon.
func (r *Registry) Register(prefix string, resolver PropertyResolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.resolvers[prefix]; exists {
		log.Warn().Str("prefix", prefix).Msg("Overriding existing secret resolver")
	}
	r.resolvers[prefix] = resolver
}

// Unregister removes the resolver bound to prefix.
func (r *Registry) Unregister(prefix string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.resolvers, prefix)
}

// Get returns the resolver bound to prefix, or nil.
func (r *Registry) Get(prefix string) PropertyResolver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolvers[prefix]
}

// Prefixes returns the registered prefixes in lexical order.
func (r *Registry) Prefixes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	prefixes := make([]string, 0, len(r.resolvers))
	for prefix := range r.resolvers {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)
	return prefixes
}

// Resolve resolves a "prefix:key" reference.
//
// Examples:
//   - "vault:refresh_token" -> Vault resolver
//   - "file:master_key"     -> file resolver
//   - "PASSWORK_TOKEN"      -> environment (implicit)
func (r *Registry) Resolve(property string) (string, error) {
	prefix, key := ParseProperty(property)

	resolver := r.Get(prefix)
	if resolver == nil {
		return "", errors.Errorf("no resolver registered for prefix %q", prefix)
	}

	value, err := resolver.Resolve(key)
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve %q using %s resolver", property, resolver.Name())
	}
	return value, nil
}

// Register binds a resolver to prefix in the Default registry.
func Register(prefix string, resolver PropertyResolver) {
	Default.Register(prefix, resolver)
}

// Unregister removes prefix from the Default registry.
func Unregister(prefix string) {
	Default.Unregister(prefix)
}

// Resolve resolves property with the Default registry.
func Resolve(property string) (string, error) {
	return Default.Resolve(property)
}

// ParseProperty splits a reference at its first colon. References without a
// colon belong to the "env" prefix.
//
//	"vault:SECRET"       -> ("vault", "SECRET")
//	"custom:db:password" -> ("custom", "db:password")
//	"PORT"               -> ("env", "PORT")
func ParseProperty(property string) (prefix string, key string) {
	prefix, key, found := strings.Cut(property, ":")
	if !found {
		return "env", property
	}
	return prefix, key
}
