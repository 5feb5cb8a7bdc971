//go:build integration

package secrets_test

import (
	"github.com/animalet/passwork-go/pkg/secrets"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Vault Integration", func() {
	It("should retrieve secrets from Vault (KV v2)", func() {
		cfg := secrets.VaultConfig{
			Address: "http://localhost:8200",
			Token:   "dev-root-token",
			Path:    "secret/data/passwork",
		}

		client, err := cfg.CreateClient()
		Expect(err).NotTo(HaveOccurred())

		value, err := secrets.NewVaultSecretLoader(client, cfg.Path).Resolve("access_token")
		Expect(err).NotTo(HaveOccurred())
		Expect(value).NotTo(BeEmpty())
	})
})
