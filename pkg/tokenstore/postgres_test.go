package tokenstore_test

import (
	"context"

	"github.com/animalet/passwork-go/pkg/tokenstore"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeRow struct {
	data []byte
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*[]byte)) = r.data
	return nil
}

type fakeQuerier struct {
	rows  map[string][]byte
	execs []string
}

func (q *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.execs = append(q.execs, sql)
	if len(args) == 2 {
		q.rows[args[0].(string)] = args[1].([]byte)
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (q *fakeQuerier) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	data, ok := q.rows[args[0].(string)]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{data: data}
}

var _ = Describe("PostgresStore", func() {
	var (
		ctx context.Context
		db  *fakeQuerier
	)

	BeforeEach(func() {
		ctx = context.Background()
		db = &fakeQuerier{rows: map[string][]byte{}}
	})

	It("should create the table", func() {
		Expect(tokenstore.NewPostgresStoreWithQuerier(db, "default").EnsureSchema(ctx)).To(Succeed())
		Expect(db.execs).To(ConsistOf(ContainSubstring("CREATE TABLE IF NOT EXISTS passwork_tokens")))
	})

	It("should treat a missing row as no tokens", func() {
		Expect(tokenstore.NewPostgresStoreWithQuerier(db, "default").Load(ctx)).To(BeNil())
	})

	It("should upsert and read back the pair", func() {
		store := tokenstore.NewPostgresStoreWithQuerier(db, "default")
		Expect(store.Save(ctx, sampleTokens)).To(Succeed())
		Expect(db.execs[0]).To(ContainSubstring("ON CONFLICT (name) DO UPDATE"))
		Expect(store.Load(ctx)).To(Equal(&sampleTokens))
		Expect(store.Close()).To(Succeed())
	})
})
