// Package secrets overlays credentials kept in AWS Secrets Manager onto the
// service configuration.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

var ErrEmptySecret = errors.New("secret has no string value")

// Bundle is the JSON document stored under the secret id. Empty fields are
// left untouched when overlaid.
type Bundle struct {
	JWTSecret    string `json:"jwt_secret"`
	ResendAPIKey string `json:"resend_api_key"`
	PostgresDSN  string `json:"postgres_dsn"`
	RedisPass    string `json:"redis_password"`
}

// API is the subset of the Secrets Manager client used here.
type API interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type Loader struct {
	api API
}

func NewLoader(api API) *Loader {
	return &Loader{api: api}
}

// NewAWSLoader builds a Loader from the default AWS credential chain.
func NewAWSLoader(ctx context.Context, region string) (*Loader, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return NewLoader(secretsmanager.NewFromConfig(cfg)), nil
}

func (l *Loader) Load(ctx context.Context, secretID string) (Bundle, error) {
	out, err := l.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return Bundle{}, fmt.Errorf("failed to read secret %s: %w", secretID, err)
	}
	raw := aws.ToString(out.SecretString)
	if raw == "" {
		return Bundle{}, fmt.Errorf("%w: %s", ErrEmptySecret, secretID)
	}
	var b Bundle
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return Bundle{}, fmt.Errorf("failed to decode secret %s: %w", secretID, err)
	}
	return b, nil
}

// Overlay copies every non-empty bundle field onto the matching target.
func (b Bundle) Overlay(jwtSecret, resendKey, postgresDSN, redisPass *string) {
	set := func(dst *string, v string) {
		if dst != nil && v != "" {
			*dst = v
		}
	}
	set(jwtSecret, b.JWTSecret)
	set(resendKey, b.ResendAPIKey)
	set(postgresDSN, b.PostgresDSN)
	set(redisPass, b.RedisPass)
}
