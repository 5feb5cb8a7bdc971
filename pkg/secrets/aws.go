package secrets

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// AWSConfig configures the "aws" resolver, backed by one AWS Secrets Manager secret.
type AWSConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
	SecretName      string `yaml:"secret_name"`
	// Endpoint overrides the service endpoint, e.g. for LocalStack.
	Endpoint string `yaml:"endpoint,omitempty"`
}

func (a AWSConfig) Validate() error {
	if a.Region == "" {
		return errors.New("AWS region is required")
	}
	if a.SecretName == "" {
		return errors.New("AWS secret name is required")
	}
	if (a.AccessKeyID == "") != (a.SecretAccessKey == "") {
		return errors.New("access_key_id and secret_access_key must be set together")
	}
	return nil
}

// CreateClient loads the AWS configuration and returns a Secrets Manager client.
// Without static credentials the default credential chain is used.
func (a AWSConfig) CreateClient() (*secretsmanager.Client, error) {
	if err := a.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid AWS configuration")
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(a.Region),
	}
	if a.Endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(a.Endpoint))
	}
	if a.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(a.AccessKeyID, a.SecretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS configuration")
	}
	return secretsmanager.NewFromConfig(cfg), nil
}

// SecretValueGetter is the subset of *secretsmanager.Client used by AWSSecretLoader.
type SecretValueGetter interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecretLoader reads values from one Secrets Manager secret. A JSON object
// secret is indexed by key; any other secret string is returned whole.
//
//	access_token: ${aws:passwork_access_token}
type AWSSecretLoader struct {
	client     SecretValueGetter
	secretName string
}

func NewAWSSecretLoader(client SecretValueGetter, secretName string) *AWSSecretLoader {
	return &AWSSecretLoader{client: client, secretName: secretName}
}

func (a *AWSSecretLoader) Resolve(key string) (string, error) {
	result, err := a.client.GetSecretValue(context.Background(), &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(a.secretName),
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to read secret %q from AWS Secrets Manager", a.secretName)
	}
	if result.SecretString == nil {
		return "", errors.Errorf("secret %q has no string value", a.secretName)
	}

	raw := *result.SecretString
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		log.Debug().Str("secret_name", a.secretName).Msg("Retrieved plain text secret from AWS Secrets Manager")
		return raw, nil
	}

	value, ok := fields[key].(string)
	if !ok {
		return "", errors.Errorf("key %q not found in AWS secret %q", key, a.secretName)
	}
	log.Debug().Str("secret_name", a.secretName).Str("key", key).Msg("Retrieved secret from AWS Secrets Manager")
	return value, nil
}

func (a *AWSSecretLoader) Name() string {
	return "AWS Secrets Manager"
}
