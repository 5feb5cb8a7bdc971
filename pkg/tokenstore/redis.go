package tokenstore

import (
	"context"
	"time"

	"github.com/animalet/passwork-go/pkg/passwork"
	"github.com/gomodule/redigo/redis"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Address     string        `yaml:"address"`
	Username    string        `yaml:"username,omitempty"`
	Password    string        `yaml:"password,omitempty"`
	Database    int           `yaml:"database,omitempty"`
	MaxIdle     int           `yaml:"max_idle,omitempty"`
	IdleTimeout time.Duration `yaml:"idle_timeout,omitempty"`
	// TTL expires the stored pair; zero keeps it forever.
	TTL time.Duration `yaml:"ttl,omitempty"`
	TLS *TLSConfig    `yaml:"tls,omitempty"`
}

func (r RedisConfig) Validate() error {
	if r.Address == "" {
		return errors.New("redis address must be set and non-empty")
	}
	if r.MaxIdle < 0 {
		return errors.New("redis max_idle must be non-negative")
	}
	if r.IdleTimeout < 0 {
		return errors.New("redis idle_timeout must be non-negative")
	}
	if r.Database < 0 {
		return errors.New("redis database must be non-negative")
	}
	if r.TTL < 0 {
		return errors.New("redis ttl must be non-negative")
	}
	return r.TLS.validate()
}

// CreateClient returns a connection pool. Connections are dialed lazily.
func (r RedisConfig) CreateClient() (*redis.Pool, error) {
	if err := r.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid Redis configuration")
	}
	cfg := r
	return &redis.Pool{
		MaxIdle:     cfg.MaxIdle,
		IdleTimeout: cfg.IdleTimeout,
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return cfg.dial(ctx)
		},
	}, nil
}

func (r RedisConfig) dial(ctx context.Context) (redis.Conn, error) {
	opts := []redis.DialOption{redis.DialDatabase(r.Database)}
	if r.Username != "" {
		opts = append(opts, redis.DialUsername(r.Username))
	}
	if r.Password != "" {
		opts = append(opts, redis.DialPassword(r.Password))
	}
	if r.TLS != nil {
		tlsConfig, err := r.TLS.build()
		if err != nil {
			return nil, err
		}
		opts = append(opts, redis.DialTLSConfig(tlsConfig), redis.DialUseTLS(true))
	}
	return redis.DialContext(ctx, "tcp", r.Address, opts...)
}

// ConnGetter is satisfied by *redis.Pool.
type ConnGetter interface {
	GetContext(ctx context.Context) (redis.Conn, error)
	Close() error
}

type RedisStore struct {
	pool ConnGetter
	key  string
	ttl  time.Duration
}

func NewRedisStore(pool ConnGetter, key string, ttl time.Duration) *RedisStore {
	return &RedisStore{pool: pool, key: key, ttl: ttl}
}

func (r *RedisStore) Load(ctx context.Context) (*passwork.Tokens, error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}
	defer closeConn(conn)

	data, err := redis.Bytes(conn.Do("GET", r.key))
	if errors.Is(err, redis.ErrNil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %q from Redis", r.key)
	}
	return decode(data)
}

func (r *RedisStore) Save(ctx context.Context, tokens passwork.Tokens) error {
	data, err := encode(tokens)
	if err != nil {
		return err
	}

	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to connect to Redis")
	}
	defer closeConn(conn)

	args := redis.Args{}.Add(r.key, data)
	if r.ttl > 0 {
		args = args.Add("PX", r.ttl.Milliseconds())
	}
	if _, err := conn.Do("SET", args...); err != nil {
		return errors.Wrapf(err, "failed to write %q to Redis", r.key)
	}
	log.Debug().Str("key", r.key).Msg("Stored Passwork tokens in Redis")
	return nil
}

func (r *RedisStore) Close() error {
	return r.pool.Close()
}

func closeConn(conn redis.Conn) {
	if err := conn.Close(); err != nil {
		log.Debug().Err(err).Msg("Failed to return Redis connection")
	}
}
