package secrets_test

import (
	"context"

	"github.com/animalet/passwork-go/pkg/secrets"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeSecretsManager struct {
	value *string
	asked string
}

func (f *fakeSecretsManager) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.asked = aws.ToString(in.SecretId)
	return &secretsmanager.GetSecretValueOutput{SecretString: f.value}, nil
}

var _ = Describe("AWS Secrets", func() {
	Context("AWSConfig Validate", func() {
		It("should require a region", func() {
			Expect(secrets.AWSConfig{SecretName: "passwork"}.Validate()).To(MatchError(ContainSubstring("region is required")))
		})

		It("should require a secret name", func() {
			Expect(secrets.AWSConfig{Region: "eu-west-1"}.Validate()).To(MatchError(ContainSubstring("secret name is required")))
		})

		It("should require both static credentials", func() {
			err := secrets.AWSConfig{Region: "eu-west-1", SecretName: "s", AccessKeyID: "id"}.Validate()
			Expect(err).To(MatchError(ContainSubstring("must be set together")))
		})
	})

	Context("AWSSecretLoader", func() {
		It("should extract keys from JSON secrets", func() {
			fake := &fakeSecretsManager{value: aws.String(`{"access_token":"a1","refresh_token":"r1"}`)}
			loader := secrets.NewAWSSecretLoader(fake, "passwork")

			Expect(loader.Resolve("refresh_token")).To(Equal("r1"))
			Expect(fake.asked).To(Equal("passwork"))
		})

		It("should return plain text secrets whole", func() {
			loader := secrets.NewAWSSecretLoader(&fakeSecretsManager{value: aws.String("plain")}, "passwork")
			Expect(loader.Resolve("ignored")).To(Equal("plain"))
		})

		It("should fail on missing JSON keys", func() {
			loader := secrets.NewAWSSecretLoader(&fakeSecretsManager{value: aws.String(`{"a":"b"}`)}, "passwork")
			_, err := loader.Resolve("master_key")
			Expect(err).To(MatchError(ContainSubstring(`key "master_key" not found`)))
		})

		It("should fail on binary secrets", func() {
			loader := secrets.NewAWSSecretLoader(&fakeSecretsManager{}, "passwork")
			_, err := loader.Resolve("k")
			Expect(err).To(MatchError(ContainSubstring("has no string value")))
		})
	})
})
