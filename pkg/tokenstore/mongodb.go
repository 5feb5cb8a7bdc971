package tokenstore

import (
	"context"
	"time"

	"github.com/animalet/passwork-go/pkg/passwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoDBConfig configures the MongoDB backend.
type MongoDBConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection,omitempty"`
	Username   string `yaml:"username,omitempty"`
	Password   string `yaml:"password,omitempty"`
	// AuthSource defaults to "admin".
	AuthSource     string        `yaml:"auth_source,omitempty"`
	ConnectTimeout time.Duration `yaml:"connect_timeout,omitempty"`
	TLS            *TLSConfig    `yaml:"tls,omitempty"`
}

// DefaultCollection is used when MongoDBConfig.Collection is empty.
const DefaultCollection = "passwork_tokens"

func (m MongoDBConfig) Validate() error {
	if m.URI == "" {
		return errors.New("MongoDB URI is required")
	}
	if m.Database == "" {
		return errors.New("MongoDB database name is required")
	}
	if m.ConnectTimeout < 0 {
		return errors.New("connect_timeout cannot be negative")
	}
	return m.TLS.validate()
}

// CreateClient connects and pings the primary.
func (m MongoDBConfig) CreateClient() (*mongo.Client, error) {
	if err := m.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid MongoDB configuration")
	}

	opts := options.Client().ApplyURI(m.URI)
	if m.Username != "" || m.Password != "" {
		authSource := m.AuthSource
		if authSource == "" {
			authSource = "admin"
		}
		opts.SetAuth(options.Credential{Username: m.Username, Password: m.Password, AuthSource: authSource})
	}

	timeout := m.ConnectTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	opts.SetConnectTimeout(timeout)

	if m.TLS != nil {
		tlsConfig, err := m.TLS.build()
		if err != nil {
			return nil, errors.Wrap(err, "failed to build TLS configuration")
		}
		opts.SetTLSConfig(tlsConfig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to MongoDB")
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "failed to ping MongoDB")
	}
	return client, nil
}

type tokenDocument struct {
	Name      string          `bson:"_id"`
	Tokens    passwork.Tokens `bson:"tokens"`
	UpdatedAt time.Time       `bson:"updated_at"`
}

func newTokenDocument(name string, tokens passwork.Tokens, now time.Time) tokenDocument {
	return tokenDocument{Name: name, Tokens: tokens, UpdatedAt: now.UTC()}
}

// pair returns nil for documents without an access token.
func (d tokenDocument) pair() *passwork.Tokens {
	if d.Tokens.AccessToken == "" {
		return nil
	}
	return &d.Tokens
}

type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	name       string
}

func NewMongoStore(client *mongo.Client, database, collection, name string) *MongoStore {
	if collection == "" {
		collection = DefaultCollection
	}
	return &MongoStore{
		client:     client,
		collection: client.Database(database).Collection(collection),
		name:       name,
	}
}

func (m *MongoStore) Load(ctx context.Context) (*passwork.Tokens, error) {
	var doc tokenDocument
	err := m.collection.FindOne(ctx, bson.M{"_id": m.name}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read tokens %q from MongoDB", m.name)
	}
	return doc.pair(), nil
}

func (m *MongoStore) Save(ctx context.Context, tokens passwork.Tokens) error {
	if tokens.AccessToken == "" {
		return errors.New("refusing to store an empty access token")
	}
	doc := newTokenDocument(m.name, tokens, time.Now())
	_, err := m.collection.ReplaceOne(ctx, bson.M{"_id": m.name}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Wrapf(err, "failed to write tokens %q to MongoDB", m.name)
	}
	log.Debug().Str("name", m.name).Msg("Stored Passwork tokens in MongoDB")
	return nil
}

func (m *MongoStore) Close() error {
	return m.client.Disconnect(context.Background())
}
