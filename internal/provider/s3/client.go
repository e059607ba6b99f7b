// client.go builds the S3 client from store settings.
//
// Settings arrive through the provider registry under the "s3" key and are
// decoded with mapstructure. A custom endpoint plus path_style targets MinIO
// and other S3-compatible servers.

package s3

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/jpl-au/wikid/internal/provider"
)

// Settings configures the S3 attachment store.
type Settings struct {
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	MaxRetries      int    `mapstructure:"max_retries"`
	// PathStyle addresses buckets as endpoint/bucket, as MinIO and most
	// S3-compatible servers expect.
	PathStyle bool `mapstructure:"path_style"`
}

// DefaultMaxRetries is used when Settings.MaxRetries is zero.
const DefaultMaxRetries = 5

func (s Settings) validate() error {
	if s.Bucket == "" {
		return fmt.Errorf("%w: s3: bucket is required", provider.ErrConfig)
	}
	if s.Region == "" {
		return fmt.Errorf("%w: s3: region is required", provider.ErrConfig)
	}
	return nil
}

// NewClient builds an S3 client for s. Static credentials are used when
// both keys are set; otherwise the default AWS credential chain applies.
func NewClient(ctx context.Context, s Settings) (*s3.Client, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}

	opts := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(s.Region),
	}
	if s.AccessKeyID != "" && s.SecretAccessKey != "" {
		opts = append(opts, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.AccessKeyID, s.SecretAccessKey, ""),
		))
	}
	attempts := s.MaxRetries
	if attempts == 0 {
		attempts = DefaultMaxRetries
	}
	opts = append(opts, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = attempts
		})
	}))

	cfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: load AWS config: %v", provider.ErrConfig, err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if s.Endpoint != "" {
			o.BaseEndpoint = aws.String(s.Endpoint)
		}
		o.UsePathStyle = s.PathStyle
	}), nil
}

func init() {
	provider.RegisterAttachment("s3", func(ctx context.Context, opts provider.Options) (provider.AttachmentProvider, error) {
		var s Settings
		if err := opts.Decode("s3", &s); err != nil {
			return nil, err
		}
		client, err := NewClient(ctx, s)
		if err != nil {
			return nil, err
		}
		return New(ctx, client, s, opts)
	})
}
