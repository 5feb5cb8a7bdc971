package tokenstore_test

import (
	"context"
	"fmt"

	"github.com/animalet/passwork-go/pkg/tokenstore"
	"github.com/gomodule/redigo/redis"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// fakeRedis implements just enough of GET/SET for RedisStore.
type fakeRedis struct {
	data     map[string][]byte
	lastArgs []any
	closed   bool
}

func (f *fakeRedis) GetContext(context.Context) (redis.Conn, error) {
	return &fakeConn{db: f}, nil
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

type fakeConn struct {
	db *fakeRedis
}

func (c *fakeConn) Close() error { return nil }
func (c *fakeConn) Err() error   { return nil }
func (c *fakeConn) Send(string, ...any) error {
	return nil
}
func (c *fakeConn) Flush() error          { return nil }
func (c *fakeConn) Receive() (any, error) { return nil, nil }

func (c *fakeConn) Do(cmd string, args ...any) (any, error) {
	c.db.lastArgs = args
	switch cmd {
	case "GET":
		v, ok := c.db.data[args[0].(string)]
		if !ok {
			return nil, nil
		}
		return v, nil
	case "SET":
		c.db.data[args[0].(string)] = args[1].([]byte)
		return "OK", nil
	}
	return nil, fmt.Errorf("unexpected command %s", cmd)
}

var _ = Describe("RedisStore", func() {
	var (
		ctx context.Context
		db  *fakeRedis
	)

	BeforeEach(func() {
		ctx = context.Background()
		db = &fakeRedis{data: map[string][]byte{}}
	})

	It("should treat a missing key as no tokens", func() {
		Expect(tokenstore.NewRedisStore(db, "k", 0).Load(ctx)).To(BeNil())
	})

	It("should round trip tokens", func() {
		store := tokenstore.NewRedisStore(db, "passwork:tokens", 0)
		Expect(store.Save(ctx, sampleTokens)).To(Succeed())
		Expect(db.lastArgs).To(HaveLen(2))
		Expect(store.Load(ctx)).To(Equal(&sampleTokens))
	})

	It("should pass the ttl in milliseconds", func() {
		store := tokenstore.NewRedisStore(db, "passwork:tokens", 90_000_000_000)
		Expect(store.Save(ctx, sampleTokens)).To(Succeed())
		Expect(db.lastArgs[2:]).To(Equal([]any{"PX", int64(90_000)}))
	})

	It("should close the pool", func() {
		Expect(tokenstore.NewRedisStore(db, "k", 0).Close()).To(Succeed())
		Expect(db.closed).To(BeTrue())
	})

	It("should create a lazy pool for a valid config", func() {
		pool, err := tokenstore.RedisConfig{Address: "localhost:6379"}.CreateClient()
		Expect(err).NotTo(HaveOccurred())
		Expect(pool.DialContext).NotTo(BeNil())
		Expect(pool.Close()).To(Succeed())
	})
})
