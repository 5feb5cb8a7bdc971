package config_test

import (
	"os"
	"path/filepath"
	"time"

	"github.com/animalet/passwork-go/pkg/config"
	"github.com/animalet/passwork-go/pkg/secrets"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
)

type examplesSection struct {
	VaultName string `yaml:"vault_name"`
	ItemID    string `yaml:"item_id"`
}

func (e examplesSection) Validate() error {
	if e.VaultName == "" {
		return errors.New("vault_name is required")
	}
	return nil
}

func writeFile(dir, name, content string) string {
	path := filepath.Join(dir, name)
	Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())
	return path
}

var _ = Describe("Load", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		GinkgoT().Setenv("TEST_PASSWORK_TOKEN", "token-from-env")
	})

	It("should load and expand a YAML file", func() {
		file := writeFile(dir, "passwork.yaml", `
passwork:
  host: https://passwork.example.com
  access_token: ${env:TEST_PASSWORK_TOKEN}
  refresh_token: ${TEST_PASSWORK_TOKEN}
  timeout: 45s
`)
		cfg, err := config.Load(file)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Passwork.Host).To(Equal("https://passwork.example.com"))
		Expect(cfg.Passwork.AccessToken).To(Equal("token-from-env"))
		Expect(cfg.Passwork.RefreshToken).To(Equal("token-from-env"))
		Expect(cfg.Passwork.EffectiveTimeout()).To(Equal(45 * time.Second))
		Expect(cfg.TokenStore).To(BeNil())
	})

	It("should load a TOML file with the same keys", func() {
		file := writeFile(dir, "passwork.toml", `
[passwork]
host = "https://passwork.example.com"
access_token = "${env:TEST_PASSWORK_TOKEN}"
timeout = "10s"

[token_store]
key = "ci"

[token_store.file]
path = "`+filepath.Join(dir, "tokens.json")+`"
`)
		cfg, err := config.Load(file)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Passwork.AccessToken).To(Equal("token-from-env"))
		Expect(cfg.Passwork.Timeout).To(Equal(10 * time.Second))
		Expect(cfg.TokenStore).NotTo(BeNil())
		Expect(cfg.TokenStore.Key).To(Equal("ci"))
		Expect(cfg.TokenStore.File.Path).To(Equal(filepath.Join(dir, "tokens.json")))
	})

	It("should default the timeout", func() {
		Expect(config.PassworkConfig{}.EffectiveTimeout()).To(Equal(config.DefaultTimeout))
	})

	It("should reject unknown formats", func() {
		file := writeFile(dir, "passwork.json", `{}`)
		_, err := config.Load(file)
		Expect(err).To(MatchError(ContainSubstring("unsupported configuration format")))
	})

	It("should report unreadable files", func() {
		_, err := config.Load(filepath.Join(dir, "missing.yaml"))
		Expect(err).To(MatchError(ContainSubstring("failed to read configuration file")))
	})

	It("should require a valid host", func() {
		file := writeFile(dir, "passwork.yaml", "passwork:\n  access_token: x\n")
		_, err := config.Load(file)
		Expect(err).To(MatchError(ContainSubstring("configuration is invalid")))
	})

	It("should reject invalid token store sections", func() {
		file := writeFile(dir, "passwork.yaml", `
passwork:
  host: https://passwork.example.com
token_store:
  file: {path: /tmp/a.json}
  redis: {address: "localhost:6379"}
`)
		_, err := config.Load(file)
		Expect(err).To(MatchError(ContainSubstring("token_store configuration is invalid")))
	})

	It("should keep literal dollar signs in credentials", func() {
		file := writeFile(dir, "passwork.yaml", `
passwork:
  host: https://passwork.example.com
  access_token: "tok$en"
  master_key: 'pa$$w0rd$HOME'
  refresh_token: " ${env:TEST_PASSWORK_TOKEN}$1"
`)
		cfg, err := config.Load(file)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Passwork.MasterKey).To(Equal("pa$$w0rd$HOME"))
		Expect(cfg.Passwork.AccessToken).To(Equal("tok$en"))
		Expect(cfg.Passwork.RefreshToken).To(Equal(" token-from-env$1"))
	})

	It("should fail on unknown secret prefixes", func() {
		file := writeFile(dir, "passwork.yaml", `
passwork:
  host: https://passwork.example.com
  master_key: ${nowhere:master}
`)
		_, err := config.Load(file)
		Expect(err).To(MatchError(ContainSubstring(`no resolver registered for prefix "nowhere"`)))
	})

	It("should register the file resolver", func() {
		secretsDir := filepath.Join(dir, "secrets")
		Expect(os.Mkdir(secretsDir, 0o700)).To(Succeed())
		writeFile(secretsDir, "master_key", "  s3cret\n")
		DeferCleanup(secrets.Unregister, "file")

		file := writeFile(dir, "passwork.yaml", `
passwork:
  host: https://passwork.example.com
  master_key: ${file:master_key}
file_resolver:
  secrets_dir: `+secretsDir+`
`)
		cfg, err := config.Load(file)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Passwork.MasterKey).To(Equal("s3cret"))
	})

	It("should load the .env file next to the configuration", func() {
		DeferCleanup(os.Unsetenv, "TEST_PASSWORK_DOTENV_HOST")
		writeFile(dir, ".env", "TEST_PASSWORK_DOTENV_HOST=https://dotenv.example.com\n")
		file := writeFile(dir, "passwork.yml", "passwork:\n  host: ${env:TEST_PASSWORK_DOTENV_HOST}\n")

		cfg, err := config.Load(file)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Passwork.Host).To(Equal("https://dotenv.example.com"))
	})

	It("should read the environment without a file", func() {
		GinkgoT().Setenv("PASSWORK_HOST", "https://env.example.com")
		GinkgoT().Setenv("PASSWORK_ACCESS_TOKEN", "a")
		GinkgoT().Setenv("PASSWORK_REFRESH_TOKEN", "r")
		GinkgoT().Setenv("PASSWORK_MASTER_KEY", "m")

		cfg, err := config.Load("")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Passwork).To(Equal(config.PassworkConfig{
			Host:         "https://env.example.com",
			AccessToken:  "a",
			RefreshToken: "r",
			MasterKey:    "m",
		}))
	})
})

var _ = Describe("Section", func() {
	var cfg *config.Config

	BeforeEach(func() {
		GinkgoT().Setenv("TEST_PASSWORK_ITEM", "5f2a9c1e8b3d4a6f7e9c0b1a")
		file := writeFile(GinkgoT().TempDir(), "passwork.yaml", `
passwork:
  host: https://passwork.example.com
examples:
  vault_name: Engineering
  item_id: ${env:TEST_PASSWORK_ITEM}
broken:
  item_id: x
`)
		var err error
		cfg, err = config.ReadConfig(file)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should decode and expand a typed section", func() {
		section, err := config.Section[examplesSection](cfg, "examples")
		Expect(err).NotTo(HaveOccurred())
		Expect(section).To(Equal(&examplesSection{VaultName: "Engineering", ItemID: "5f2a9c1e8b3d4a6f7e9c0b1a"}))
	})

	It("should return nil for missing sections", func() {
		Expect(config.Section[examplesSection](cfg, "absent")).To(BeNil())
	})

	It("should validate the section", func() {
		_, err := config.Section[examplesSection](cfg, "broken")
		Expect(err).To(MatchError(ContainSubstring("broken configuration is invalid")))
	})
})
