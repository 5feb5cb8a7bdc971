package tokenstore

import (
	"context"
	"time"

	"github.com/animalet/passwork-go/pkg/passwork"
	"github.com/bradfitz/gomemcache/memcache"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// MemcachedConfig configures the Memcached backend.
type MemcachedConfig struct {
	// Servers lists host:port addresses.
	Servers []string `yaml:"servers"`
	// Timeout defaults to 100ms.
	Timeout time.Duration `yaml:"timeout,omitempty"`
	// MaxIdleConns defaults to 2.
	MaxIdleConns int `yaml:"max_idle_conns,omitempty"`
	// Expiration of the stored pair, at most 30 days; zero keeps it until evicted.
	Expiration time.Duration `yaml:"expiration,omitempty"`
}

const maxMemcachedExpiration = 30 * 24 * time.Hour

func (m MemcachedConfig) Validate() error {
	if len(m.Servers) == 0 {
		return errors.New("at least one Memcached server address is required")
	}
	for i, server := range m.Servers {
		if server == "" {
			return errors.Errorf("server address at index %d is empty", i)
		}
	}
	if m.Timeout < 0 {
		return errors.New("timeout cannot be negative")
	}
	if m.MaxIdleConns < 0 {
		return errors.New("max_idle_conns cannot be negative")
	}
	if m.Expiration < 0 || m.Expiration > maxMemcachedExpiration {
		return errors.New("expiration must be between 0 and 30 days")
	}
	return nil
}

// CreateClient connects and pings the servers.
func (m MemcachedConfig) CreateClient() (*memcache.Client, error) {
	if err := m.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid Memcached configuration")
	}

	client := memcache.New(m.Servers...)
	client.Timeout = 100 * time.Millisecond
	if m.Timeout > 0 {
		client.Timeout = m.Timeout
	}
	client.MaxIdleConns = 2
	if m.MaxIdleConns > 0 {
		client.MaxIdleConns = m.MaxIdleConns
	}

	if err := client.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to Memcached")
	}
	return client, nil
}

// Memcache is the subset of *memcache.Client used by MemcachedStore.
type Memcache interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
}

type MemcachedStore struct {
	client     Memcache
	key        string
	expiration time.Duration
}

func NewMemcachedStore(client Memcache, key string, expiration time.Duration) *MemcachedStore {
	return &MemcachedStore{client: client, key: key, expiration: expiration}
}

func (m *MemcachedStore) Load(_ context.Context) (*passwork.Tokens, error) {
	item, err := m.client.Get(m.key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %q from Memcached", m.key)
	}
	return decode(item.Value)
}

func (m *MemcachedStore) Save(_ context.Context, tokens passwork.Tokens) error {
	data, err := encode(tokens)
	if err != nil {
		return err
	}
	item := &memcache.Item{Key: m.key, Value: data, Expiration: int32(m.expiration / time.Second)}
	if err := m.client.Set(item); err != nil {
		return errors.Wrapf(err, "failed to write %q to Memcached", m.key)
	}
	log.Debug().Str("key", m.key).Msg("Stored Passwork tokens in Memcached")
	return nil
}

func (m *MemcachedStore) Close() error {
	if closer, ok := m.client.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
