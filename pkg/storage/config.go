package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Config selects and configures a FileStore.
type Config struct {
	// Kind is "local" (default) or "s3".
	Kind string `yaml:"kind,omitempty" json:"kind,omitempty"`

	// Dir is the root directory for local stores.
	Dir string `yaml:"dir,omitempty" json:"dir,omitempty"`

	Bucket string `yaml:"bucket,omitempty" json:"bucket,omitempty"`
	Prefix string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Region string `yaml:"region,omitempty" json:"region,omitempty"`

	// Endpoint points at an S3-compatible service such as MinIO. Setting it
	// switches to path-style addressing.
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
}

// Open returns the FileStore described by cfg.
//
// S3 clients are built from the default AWS configuration chain:
// environment variables, shared config and credentials files (AWS_PROFILE),
// SSO, web identity and instance metadata. cfg.Region overrides the
// resolved region; when neither yields one, us-east-1 is used.
func Open(ctx context.Context, cfg Config) (FileStore, error) {
	switch cfg.Kind {
	case "", "local":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("storage: local store needs a dir")
		}
		return NewLocal(cfg.Dir)
	case "s3":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("storage: s3 store needs a bucket")
		}
		client, err := newS3Client(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewS3(client, cfg.Bucket, cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("storage: unknown kind %q", cfg.Kind)
	}
}

// DefaultRegion is used when neither Config.Region nor the AWS
// configuration names a region.
const DefaultRegion = "us-east-1"

func newS3Client(ctx context.Context, cfg Config) (*s3.Client, error) {
	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}
	if awsCfg.Region == "" {
		awsCfg.Region = DefaultRegion
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}
