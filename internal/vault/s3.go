package vault

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"fstash/internal/config"
	"fstash/internal/stash"
)

// S3Vault stores snapshots as objects in an S3 (or S3-compatible) bucket.
// Object keys are "<prefix>/<key>". Uploads stream through the s3 manager
// uploader, so snapshot size is not bounded by memory.
type S3Vault struct {
	name     string
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewS3Vault builds an S3 vault from its config section. A custom endpoint
// switches the client to path-style addressing for MinIO-style servers.
// Without static credentials the default AWS credential chain applies.
func NewS3Vault(ctx context.Context, cfg config.VaultConfig) (*S3Vault, error) {
	var configOptions []func(*awsConfig.LoadOptions) error
	configOptions = append(configOptions, awsConfig.WithRegion(cfg.S3Region))

	if cfg.S3Endpoint != "" {
		//nolint:staticcheck // BaseEndpoint migration pending on SDK stabilization
		resolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck
				return aws.Endpoint{
					URL:               cfg.S3Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		//nolint:staticcheck
		configOptions = append(configOptions, awsConfig.WithEndpointResolverWithOptions(resolver))
	}

	if cfg.S3AccessKeyID != "" && cfg.S3SecretAccessKey != "" {
		provider := credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKeyID,
			cfg.S3SecretAccessKey,
			"",
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(provider))
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	return &S3Vault{
		name:     cfg.Name,
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   cfg.S3Bucket,
		prefix:   cfg.S3Prefix,
	}, nil
}

func (v *S3Vault) objectKey(key string) string {
	if v.prefix == "" {
		return key
	}
	return path.Join(v.prefix, key)
}

func (v *S3Vault) PutSnapshot(ctx context.Context, key string, r io.Reader) error {
	_, err := v.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(v.objectKey(key)),
		Body:   r,
	})
	if err != nil {
		return fmt.Errorf("uploading snapshot %s: %w", key, err)
	}
	return nil
}

// ValidateSetup verifies the bucket exists and is reachable with the
// configured credentials.
func (v *S3Vault) ValidateSetup(ctx context.Context) error {
	_, err := v.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(v.bucket),
	})
	if err != nil {
		return fmt.Errorf("bucket %s not accessible: %w", v.bucket, err)
	}
	return nil
}

var _ stash.Vault = (*S3Vault)(nil)
