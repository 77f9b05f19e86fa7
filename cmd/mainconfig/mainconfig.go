package mainconfig

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/wolfman30/whatsapp-test-harness/internal/archive"
	appconfig "github.com/wolfman30/whatsapp-test-harness/internal/config"
	"github.com/wolfman30/whatsapp-test-harness/pkg/logging"
)

// LoadAWSConfig centralizes AWS SDK initialization so the binaries share the
// same LocalStack/production wiring.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}
	return config.LoadDefaultConfig(ctx, loaders...)
}

// NewS3Client builds an S3 client, pointing it at AWSEndpointOverride with
// path-style addressing when set.
func NewS3Client(awsCfg aws.Config, cfg *appconfig.Config) *s3.Client {
	endpoint := strings.TrimSpace(cfg.AWSEndpointOverride)
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
}

// ResultArchive returns the S3 archive for run results, or nil when
// RESULTS_S3_BUCKET is unset or AWS cannot be configured.
func ResultArchive(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *archive.Store {
	if strings.TrimSpace(cfg.ResultsS3Bucket) == "" {
		return nil
	}
	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Warn("results archive disabled: aws config failed", "error", err)
		return nil
	}
	return archive.NewStore(NewS3Client(awsCfg, cfg), cfg.ResultsS3Bucket, cfg.ResultsS3Prefix, logger)
}
