package secrets_test

import (
	"context"

	"github.com/animalet/passwork-go/pkg/secrets"
	"github.com/hashicorp/vault/api"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
)

type fakeLogical struct {
	secret *api.Secret
	err    error
	reads  int
}

func (f *fakeLogical) ReadWithContext(_ context.Context, _ string) (*api.Secret, error) {
	f.reads++
	return f.secret, f.err
}

var _ = Describe("Vault Secrets", func() {
	Context("VaultConfig Validate", func() {
		It("should return error if address is empty", func() {
			err := secrets.VaultConfig{Token: "token", Path: "secret/data/passwork"}.Validate()
			Expect(err).To(MatchError(ContainSubstring("Vault address is required")))
		})

		It("should return error if token is empty", func() {
			err := secrets.VaultConfig{Address: "http://localhost:8200", Path: "secret/data/passwork"}.Validate()
			Expect(err).To(MatchError(ContainSubstring("Vault token is required")))
		})

		It("should return error if path is empty", func() {
			err := secrets.VaultConfig{Address: "http://localhost:8200", Token: "token"}.Validate()
			Expect(err).To(MatchError(ContainSubstring("Vault path is required")))
		})
	})

	Context("VaultConfig CreateClient", func() {
		It("should create client with namespace", func() {
			client, err := secrets.VaultConfig{
				Address:   "http://localhost:8200",
				Token:     "token",
				Path:      "secret/data/passwork",
				Namespace: "ns",
			}.CreateClient()
			Expect(err).NotTo(HaveOccurred())
			Expect(client.Token()).To(Equal("token"))
			Expect(client.Namespace()).To(Equal("ns"))
		})
	})

	Context("VaultSecretLoader", func() {
		It("should read KV v2 secrets", func() {
			logical := &fakeLogical{secret: &api.Secret{Data: map[string]any{
				"data": map[string]any{"refresh_token": "r1"},
			}}}
			loader := secrets.NewVaultSecretLoaderWithReader(logical, "secret/data/passwork")

			value, err := loader.Resolve("refresh_token")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal("r1"))
		})

		It("should read KV v1 secrets and cache the path", func() {
			logical := &fakeLogical{secret: &api.Secret{Data: map[string]any{
				"access_token": "a1",
				"master_key":   "m1",
			}}}
			loader := secrets.NewVaultSecretLoaderWithReader(logical, "secret/passwork")

			Expect(loader.Resolve("access_token")).To(Equal("a1"))
			Expect(loader.Resolve("master_key")).To(Equal("m1"))
			Expect(logical.reads).To(Equal(1))
		})

		It("should fail on missing keys", func() {
			logical := &fakeLogical{secret: &api.Secret{Data: map[string]any{"other": "x"}}}
			_, err := secrets.NewVaultSecretLoaderWithReader(logical, "p").Resolve("access_token")
			Expect(err).To(MatchError(ContainSubstring(`secret "access_token" not found`)))
		})

		It("should fail on empty paths", func() {
			_, err := secrets.NewVaultSecretLoaderWithReader(&fakeLogical{}, "p").Resolve("k")
			Expect(err).To(MatchError(ContainSubstring("no secret found")))
		})

		It("should wrap read errors", func() {
			logical := &fakeLogical{err: errors.New("permission denied")}
			_, err := secrets.NewVaultSecretLoaderWithReader(logical, "p").Resolve("k")
			Expect(err).To(MatchError(ContainSubstring("permission denied")))
		})
	})
})
