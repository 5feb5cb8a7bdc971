package runner_test

import (
	"bytes"
	"context"
	"path/filepath"
	"time"

	"github.com/animalet/passwork-go/pkg/config"
	"github.com/animalet/passwork-go/pkg/passwork"
	"github.com/animalet/passwork-go/pkg/passwork/passworktest"
	"github.com/animalet/passwork-go/pkg/runner"
	"github.com/animalet/passwork-go/pkg/tokenstore"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
)

type failingStore struct{}

func (failingStore) Load(context.Context) (*passwork.Tokens, error) {
	return nil, errors.New("backend down")
}

func (failingStore) Save(context.Context, passwork.Tokens) error { return nil }

var _ = Describe("NewAuthenticator", func() {
	var (
		ctx    context.Context
		out    *bytes.Buffer
		server *passworktest.Server
		cfg    config.PassworkConfig
	)

	BeforeEach(func() {
		ctx = context.Background()
		out = &bytes.Buffer{}
		server = passworktest.NewServer(GinkgoT(), "access-1", "refresh-1")
		cfg = config.PassworkConfig{
			Host:         server.URL,
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
			Timeout:      5 * time.Second,
		}
	})

	It("should create a vault end to end", func() {
		code := runner.Run(ctx, out, runner.NewAuthenticator(cfg, nil), runner.CreateVault("Go Vault"))

		Expect(code).To(Equal(runner.ExitOK))
		Expect(server.Vaults()).To(HaveLen(1))
		Expect(out.String()).To(Equal("Vault was created: " + server.Vaults()[0].ID + "\n"))
	})

	It("should create a company vault end to end", func() {
		typeID := server.AddVaultType("company", "Company vault")
		code := runner.Run(ctx, out, runner.NewAuthenticator(cfg, nil), runner.CreateCompanyVault("Go Vault"))

		Expect(code).To(Equal(runner.ExitOK))
		Expect(server.Vaults()).To(ConsistOf(HaveField("TypeID", typeID)))
	})

	It("should send an encrypted vault key with a master key", func() {
		cfg.MasterKey = "master"
		runner.Run(ctx, out, runner.NewAuthenticator(cfg, nil), runner.CreateVault("Go Vault"))
		Expect(server.Vaults()).To(ConsistOf(HaveField("EncryptedKey", HavePrefix("U2FsdGVkX1"))))
	})

	It("should fail without an access token", func() {
		cfg.AccessToken = ""
		code := runner.Run(ctx, out, runner.NewAuthenticator(cfg, nil), runner.CreateVault("Go Vault"))

		Expect(code).To(Equal(runner.ExitAuthFailed))
		Expect(out.String()).To(HavePrefix("Error: "))
		Expect(out.String()).To(ContainSubstring(passwork.ErrNoTokens.Error()))
		Expect(server.Requests()).To(BeEmpty())
	})

	It("should fail on an invalid host", func() {
		cfg.Host = "ftp://passwork"
		code := runner.Run(ctx, out, runner.NewAuthenticator(cfg, nil), runner.CreateVault("Go Vault"))
		Expect(code).To(Equal(runner.ExitAuthFailed))
		Expect(out.String()).To(ContainSubstring("scheme must be http or https"))
	})

	It("should fail when the token store cannot be read", func() {
		code := runner.Run(ctx, out, runner.NewAuthenticator(cfg, failingStore{}), runner.CreateVault("Go Vault"))
		Expect(code).To(Equal(runner.ExitAuthFailed))
		Expect(out.String()).To(Equal("Error: failed to load stored tokens: backend down\n"))
	})

	It("should report API errors without failing the process", func() {
		code := runner.Run(ctx, out, runner.NewAuthenticator(cfg, nil),
			runner.GetSnapshot(passworktest.NewID(), passworktest.NewID()))
		Expect(code).To(Equal(runner.ExitOK))
		Expect(out.String()).To(HavePrefix("Error: failed to get snapshot"))
		Expect(out.String()).To(ContainSubstring("passwork API error 404 (notFound)"))
	})

	Context("with a token store", func() {
		var store *tokenstore.FileStore

		BeforeEach(func() {
			store = tokenstore.NewFileStore(filepath.Join(GinkgoT().TempDir(), "tokens.json"))
		})

		It("should prefer stored tokens over configured ones", func() {
			Expect(store.Save(ctx, passwork.Tokens{AccessToken: "access-1", RefreshToken: "refresh-1"})).To(Succeed())
			cfg.AccessToken = "stale"

			code := runner.Run(ctx, out, runner.NewAuthenticator(cfg, store), runner.CreateVault("Go Vault"))
			Expect(code).To(Equal(runner.ExitOK))
			Expect(out.String()).To(HavePrefix("Vault was created: "))
		})

		It("should persist rotated tokens after a refresh", func() {
			server.ExpireAccessToken()

			code := runner.Run(ctx, out, runner.NewAuthenticator(cfg, store), runner.CreateVault("Go Vault"))
			Expect(code).To(Equal(runner.ExitOK))
			Expect(server.Refreshes()).To(Equal(1))

			saved, err := store.Load(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.AccessToken).To(Equal(server.AccessToken()))
			Expect(saved.RefreshToken).To(Equal(server.RefreshToken()))
		})
	})
})
