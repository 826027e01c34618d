package s3store

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	DefaultPresignTTL  = 15 * time.Minute
	DefaultConcurrency = 4
)

// Config holds S3 connection and sync settings.
type Config struct {
	Enabled        bool          `mapstructure:"enabled"`
	Bucket         string        `mapstructure:"bucket" validate:"required_if=Enabled true"`
	Region         string        `mapstructure:"region"`
	Endpoint       string        `mapstructure:"endpoint" validate:"omitempty,url"`
	Prefix         string        `mapstructure:"prefix"`
	AccessKey      string        `mapstructure:"access_key"`
	SecretKey      string        `mapstructure:"secret_key"`
	ForcePathStyle bool          `mapstructure:"force_path_style"`
	PresignTTL     time.Duration `mapstructure:"presign_ttl" validate:"min=0"`
	Concurrency    int           `mapstructure:"concurrency" validate:"min=0"`
}

// NewClient builds an S3 client for cfg. Static credentials are used when
// both keys are set, otherwise the default AWS credential chain applies.
func NewClient(ctx context.Context, cfg Config) (*s3.Client, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	}), nil
}
