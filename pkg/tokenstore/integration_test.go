//go:build integration

package tokenstore_test

import (
	"context"

	"github.com/animalet/passwork-go/pkg/tokenstore"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Token store backends", func() {
	DescribeTable("should round trip tokens",
		func(cfg tokenstore.Config) {
			store, err := cfg.CreateClient()
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(store.Close)

			ctx := context.Background()
			Expect(store.Save(ctx, sampleTokens)).To(Succeed())
			Expect(store.Load(ctx)).To(Equal(&sampleTokens))
		},
		Entry("redis", tokenstore.Config{Key: "passwork:test", Redis: &tokenstore.RedisConfig{Address: "localhost:6379"}}),
		Entry("memcached", tokenstore.Config{Key: "passwork:test", Memcached: &tokenstore.MemcachedConfig{Servers: []string{"localhost:11211"}}}),
		Entry("postgres", tokenstore.Config{Key: "test", Postgres: &tokenstore.PostgresConfig{
			Host: "localhost", Port: 5432, Database: "passwork", User: "passwork", Password: "passwork", SSLMode: "disable",
		}}),
		Entry("mongodb", tokenstore.Config{Key: "test", MongoDB: &tokenstore.MongoDBConfig{URI: "mongodb://localhost:27017", Database: "passwork"}}),
	)
})
