package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsManagerSource reads one JSON secret shaped like Credentials.
type SecretsManagerSource struct {
	SecretID string
	client   secretGetter
}

func NewSecretsManagerSource(region, secretID string) (*SecretsManagerSource, error) {
	if strings.TrimSpace(region) == "" {
		return nil, fmt.Errorf("missing region")
	}
	if strings.TrimSpace(secretID) == "" {
		return nil, fmt.Errorf("missing secret id")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &SecretsManagerSource{SecretID: secretID, client: secretsmanager.NewFromConfig(cfg)}, nil
}

func (s *SecretsManagerSource) Load(ctx context.Context) (Credentials, error) {
	if s.client == nil {
		return Credentials{}, fmt.Errorf("secrets manager client not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(s.SecretID)})
	if err != nil {
		return Credentials{}, fmt.Errorf("get secret %s: %w", s.SecretID, err)
	}

	raw := aws.ToString(out.SecretString)
	if raw == "" && len(out.SecretBinary) > 0 {
		raw = string(out.SecretBinary)
	}
	if raw == "" {
		return Credentials{}, fmt.Errorf("secret %s is empty", s.SecretID)
	}

	var creds Credentials
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return Credentials{}, fmt.Errorf("decode secret %s: %w", s.SecretID, err)
	}
	return creds, nil
}

type secretGetter interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}
