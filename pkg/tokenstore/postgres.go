package tokenstore

import (
	"context"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/animalet/passwork-go/pkg/passwork"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// PostgresConfig configures the PostgreSQL backend. Pairs live in the
// passwork_tokens table, which is created on first use.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            uint16        `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"ssl_mode,omitempty"`
	MaxConns        int32         `yaml:"max_conns,omitempty"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime,omitempty"`
}

var validSSLModes = map[string]bool{
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

func (p PostgresConfig) Validate() error {
	if p.Host == "" {
		return errors.New("postgres host must be set and non-empty")
	}
	if p.Port == 0 {
		return errors.New("postgres port must be set and non-zero")
	}
	if p.Database == "" {
		return errors.New("postgres database must be set and non-empty")
	}
	if p.User == "" {
		return errors.New("postgres user must be set and non-empty")
	}
	if p.SSLMode != "" && !validSSLModes[p.SSLMode] {
		return errors.Errorf("invalid ssl_mode %q, must be one of: disable, allow, prefer, require, verify-ca, verify-full", p.SSLMode)
	}
	if p.MaxConns < 0 {
		return errors.New("max_conns must be non-negative")
	}
	if p.MaxConnLifetime < 0 {
		return errors.New("max_conn_lifetime must be non-negative")
	}
	return nil
}

func (p PostgresConfig) connString() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.User, p.Password),
		Host:   net.JoinHostPort(p.Host, strconv.Itoa(int(p.Port))),
		Path:   "/" + p.Database,
	}
	if p.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {p.SSLMode}}.Encode()
	}
	return u.String()
}

// CreateClient opens a pool and pings the server.
func (p PostgresConfig) CreateClient() (*pgxpool.Pool, error) {
	if err := p.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid PostgreSQL configuration")
	}

	poolConfig, err := pgxpool.ParseConfig(p.connString())
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse PostgreSQL connection string")
	}
	if p.MaxConns > 0 {
		poolConfig.MaxConns = p.MaxConns
	}
	if p.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = p.MaxConnLifetime
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create PostgreSQL connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed to connect to PostgreSQL")
	}
	return pool, nil
}

// Querier is the subset of *pgxpool.Pool used by PostgresStore.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	createTokensTable = `CREATE TABLE IF NOT EXISTS passwork_tokens (
	name       TEXT PRIMARY KEY,
	tokens     JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	selectTokens = `SELECT tokens FROM passwork_tokens WHERE name = $1`
	upsertTokens = `INSERT INTO passwork_tokens (name, tokens, updated_at) VALUES ($1, $2, now())
ON CONFLICT (name) DO UPDATE SET tokens = EXCLUDED.tokens, updated_at = EXCLUDED.updated_at`
)

type PostgresStore struct {
	db    Querier
	name  string
	close func()
}

// NewPostgresStore stores the pair in the row named name. The pool is closed
// with the store.
func NewPostgresStore(pool *pgxpool.Pool, name string) *PostgresStore {
	return &PostgresStore{db: pool, name: name, close: pool.Close}
}

// NewPostgresStoreWithQuerier is NewPostgresStore over any Querier; Close is a no-op.
func NewPostgresStoreWithQuerier(db Querier, name string) *PostgresStore {
	return &PostgresStore{db: db, name: name, close: func() {}}
}

// EnsureSchema creates the tokens table when missing.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, createTokensTable); err != nil {
		return errors.Wrap(err, "failed to create passwork_tokens table")
	}
	return nil
}

func (p *PostgresStore) Load(ctx context.Context) (*passwork.Tokens, error) {
	var data []byte
	err := p.db.QueryRow(ctx, selectTokens, p.name).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read tokens %q from PostgreSQL", p.name)
	}
	return decode(data)
}

func (p *PostgresStore) Save(ctx context.Context, tokens passwork.Tokens) error {
	data, err := encode(tokens)
	if err != nil {
		return err
	}
	if _, err := p.db.Exec(ctx, upsertTokens, p.name, data); err != nil {
		return errors.Wrapf(err, "failed to write tokens %q to PostgreSQL", p.name)
	}
	log.Debug().Str("name", p.name).Msg("Stored Passwork tokens in PostgreSQL")
	return nil
}

func (p *PostgresStore) Close() error {
	p.close()
	return nil
}
