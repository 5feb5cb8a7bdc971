package secrets_test

import (
	"os"
	"path/filepath"

	"github.com/animalet/passwork-go/pkg/secrets"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("FileSecretLoader", func() {
	var tempDir string

	BeforeEach(func() {
		tempDir = GinkgoT().TempDir()
	})

	Context("Validate", func() {
		It("should return error if secrets_dir is empty", func() {
			err := secrets.FileSecretConfig{}.Validate()
			Expect(err).To(MatchError(ContainSubstring("secrets_dir is required")))
		})

		It("should return error if secrets_dir does not exist", func() {
			err := secrets.FileSecretConfig{SecretsDir: "/non/existent/dir"}.Validate()
			Expect(err).To(MatchError(ContainSubstring("does not exist")))
		})

		It("should return error if secrets_dir is not a directory", func() {
			path := filepath.Join(tempDir, "file")
			Expect(os.WriteFile(path, []byte("content"), 0o600)).To(Succeed())

			err := secrets.FileSecretConfig{SecretsDir: path}.Validate()
			Expect(err).To(MatchError(ContainSubstring("is not a directory")))
		})

		It("should pass if secrets_dir is a directory", func() {
			Expect(secrets.FileSecretConfig{SecretsDir: tempDir}.Validate()).To(Succeed())
		})
	})

	Context("Resolve", func() {
		var loader *secrets.FileSecretLoader

		BeforeEach(func() {
			var err error
			loader, err = secrets.FileSecretConfig{SecretsDir: tempDir}.CreateClient()
			Expect(err).NotTo(HaveOccurred())
		})

		It("should refuse an empty directory", func() {
			_, err := secrets.NewFileSecretLoader("")
			Expect(err).To(MatchError(ContainSubstring("no secrets directory configured")))
		})

		It("should read and trim the secret file", func() {
			Expect(os.WriteFile(filepath.Join(tempDir, "master_key"), []byte("  s3cr3t\n"), 0o600)).To(Succeed())

			value, err := loader.Resolve("master_key")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal("s3cr3t"))
		})

		It("should read files in subdirectories", func() {
			Expect(os.MkdirAll(filepath.Join(tempDir, "passwork"), 0o700)).To(Succeed())
			Expect(os.WriteFile(filepath.Join(tempDir, "passwork", "token"), []byte("tok"), 0o600)).To(Succeed())

			value, err := loader.Resolve("passwork/token")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal("tok"))
		})

		It("should reject an empty key", func() {
			_, err := loader.Resolve("")
			Expect(err).To(MatchError(ContainSubstring("no file specified")))
		})

		It("should reject absolute paths", func() {
			_, err := loader.Resolve("/etc/passwd")
			Expect(err).To(MatchError(ContainSubstring("absolute paths not allowed")))
		})

		It("should reject path traversal", func() {
			_, err := loader.Resolve("../outside")
			Expect(err).To(MatchError(ContainSubstring("path traversal detected")))
		})

		It("should report missing secrets", func() {
			_, err := loader.Resolve("missing")
			Expect(err).To(MatchError(ContainSubstring(`secret "missing" not found`)))
		})
	})
})
