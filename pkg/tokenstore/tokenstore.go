// Package tokenstore persists the Passwork access/refresh token pair between
// runs. Passwork rotates the refresh token on every refresh, so a process that
// refreshed must hand the new pair to the next one.
//
// Exactly one backend is configured:
//
//	token_store:
//	  key: passwork:tokens
//	  redis:
//	    address: localhost:6379
package tokenstore

import (
	"context"
	"encoding/json"
	"io"

	"github.com/animalet/passwork-go/pkg/passwork"
	"github.com/pkg/errors"
)

// DefaultKey names the stored pair when Config.Key is empty.
const DefaultKey = "passwork:tokens"

// Store is a passwork.TokenStore that owns backend resources.
type Store interface {
	passwork.TokenStore
	io.Closer
}

// Config selects and configures one backend.
type Config struct {
	Key       string           `yaml:"key,omitempty"`
	File      *FileConfig      `yaml:"file,omitempty"`
	Redis     *RedisConfig     `yaml:"redis,omitempty"`
	Memcached *MemcachedConfig `yaml:"memcached,omitempty"`
	Postgres  *PostgresConfig  `yaml:"postgres,omitempty"`
	MongoDB   *MongoDBConfig   `yaml:"mongodb,omitempty"`
}

type validatable interface {
	Validate() error
}

func (c Config) backends() []validatable {
	var set []validatable
	if c.File != nil {
		set = append(set, c.File)
	}
	if c.Redis != nil {
		set = append(set, c.Redis)
	}
	if c.Memcached != nil {
		set = append(set, c.Memcached)
	}
	if c.Postgres != nil {
		set = append(set, c.Postgres)
	}
	if c.MongoDB != nil {
		set = append(set, c.MongoDB)
	}
	return set
}

// Validate checks that exactly one valid backend is configured.
func (c Config) Validate() error {
	backends := c.backends()
	switch len(backends) {
	case 0:
		return errors.New("token_store needs one backend: file, redis, memcached, postgres or mongodb")
	case 1:
		return backends[0].Validate()
	default:
		return errors.New("token_store accepts only one backend")
	}
}

func (c Config) key() string {
	if c.Key == "" {
		return DefaultKey
	}
	return c.Key
}

// CreateClient opens the configured backend.
func (c Config) CreateClient() (Store, error) {
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid token store configuration")
	}

	switch {
	case c.File != nil:
		return NewFileStore(c.File.Path), nil
	case c.Redis != nil:
		pool, err := c.Redis.CreateClient()
		if err != nil {
			return nil, err
		}
		return NewRedisStore(pool, c.key(), c.Redis.TTL), nil
	case c.Memcached != nil:
		client, err := c.Memcached.CreateClient()
		if err != nil {
			return nil, err
		}
		return NewMemcachedStore(client, c.key(), c.Memcached.Expiration), nil
	case c.Postgres != nil:
		pool, err := c.Postgres.CreateClient()
		if err != nil {
			return nil, err
		}
		store := NewPostgresStore(pool, c.key())
		if err := store.EnsureSchema(context.Background()); err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil
	default:
		client, err := c.MongoDB.CreateClient()
		if err != nil {
			return nil, err
		}
		return NewMongoStore(client, c.MongoDB.Database, c.MongoDB.Collection, c.key()), nil
	}
}

func encode(t passwork.Tokens) ([]byte, error) {
	if t.AccessToken == "" {
		return nil, errors.New("refusing to store an empty access token")
	}
	data, err := json.Marshal(t)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode tokens")
	}
	return data, nil
}

func decode(data []byte) (*passwork.Tokens, error) {
	var t passwork.Tokens
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, errors.Wrap(err, "failed to decode stored tokens")
	}
	if t.AccessToken == "" {
		return nil, nil
	}
	return &t, nil
}
