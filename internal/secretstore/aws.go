package secretstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
)

// awsRefPrefix marks references issued by the AWS backend.
const awsRefPrefix = "aws:"

// AWSStore keeps secrets in AWS Secrets Manager under
// <prefix>/<userID>/<name>. The user ID baked into the path is what scopes
// Get and Delete to the owning user.
type AWSStore struct {
	client *secretsmanager.Client
	prefix string
}

// NewAWSStore builds an AWSStore using the default AWS credential chain.
func NewAWSStore(ctx context.Context, region, prefix string) (*AWSStore, error) {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = "syncforge"
	}
	var opts []func(*awsconfig.LoadOptions) error
	if strings.TrimSpace(region) != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("secretstore: aws config: %w", err)
	}
	return &AWSStore{client: secretsmanager.NewFromConfig(cfg), prefix: prefix}, nil
}

// Put creates or updates the managed secret and returns its reference.
func (s *AWSStore) Put(ctx context.Context, userID uint64, name, value string) (string, error) {
	secretName := s.secretName(userID, name)

	_, err := s.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(secretName),
		SecretString: aws.String(value),
	})
	if err != nil {
		var exists *smtypes.ResourceExistsException
		if !errors.As(err, &exists) {
			return "", fmt.Errorf("secretstore: create managed secret: %w", err)
		}
		_, err = s.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
			SecretId:     aws.String(secretName),
			SecretString: aws.String(value),
		})
		if err != nil {
			return "", fmt.Errorf("secretstore: update managed secret: %w", err)
		}
	}

	return awsRefPrefix + secretName, nil
}

// Get resolves an AWS reference for the owning user.
func (s *AWSStore) Get(ctx context.Context, userID uint64, ref string) (string, error) {
	secretName, ok := s.ownedSecretName(userID, ref)
	if !ok {
		return "", ErrSecretNotFound
	}

	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretName),
	})
	if err != nil {
		var notFound *smtypes.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return "", ErrSecretNotFound
		}
		return "", fmt.Errorf("secretstore: read managed secret: %w", err)
	}
	if out.SecretString == nil {
		return "", ErrSecretNotFound
	}
	return *out.SecretString, nil
}

// Delete removes the managed secret without a recovery window.
func (s *AWSStore) Delete(ctx context.Context, userID uint64, ref string) error {
	secretName, ok := s.ownedSecretName(userID, ref)
	if !ok {
		return nil
	}
	_, err := s.client.DeleteSecret(ctx, &secretsmanager.DeleteSecretInput{
		SecretId:                   aws.String(secretName),
		ForceDeleteWithoutRecovery: aws.Bool(true),
	})
	if err != nil {
		var notFound *smtypes.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("secretstore: delete managed secret: %w", err)
	}
	return nil
}

// secretName builds the fully qualified managed secret name.
func (s *AWSStore) secretName(userID uint64, name string) string {
	return fmt.Sprintf("%s/%d/%s", s.prefix, userID, name)
}

// ownedSecretName validates that a reference belongs to this backend and
// user, returning the managed secret name.
func (s *AWSStore) ownedSecretName(userID uint64, ref string) (string, bool) {
	if !strings.HasPrefix(ref, awsRefPrefix) {
		return "", false
	}
	secretName := strings.TrimPrefix(ref, awsRefPrefix)
	expectedScope := fmt.Sprintf("%s/%d/", s.prefix, userID)
	if !strings.HasPrefix(secretName, expectedScope) {
		return "", false
	}
	return secretName, true
}
