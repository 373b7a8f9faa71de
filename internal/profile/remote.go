package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/ernie/shoot-or-shield/internal/config"
	"github.com/ernie/shoot-or-shield/internal/domain"
)

// Remote is an off-machine copy of profiles
type Remote interface {
	Upload(ctx context.Context, p domain.Profile) error
	// Download returns nil when the profile has never been uploaded
	Download(ctx context.Context, id string) (*domain.Profile, error)
}

// S3Remote keeps profiles as JSON objects in an S3-compatible bucket
type S3Remote struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Remote builds a client for the configured bucket. A custom endpoint
// selects path-style addressing, which R2 and MinIO expect.
func NewS3Remote(ctx context.Context, cfg config.RemoteSyncConfig) (*S3Remote, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("remote sync bucket not configured")
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading S3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})
	return &S3Remote{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (r *S3Remote) key(id string) string {
	return path.Join(r.prefix, id+".json")
}

// Upload writes the profile object
func (r *S3Remote) Upload(ctx context.Context, p domain.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}
	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(r.key(p.ID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("uploading profile %s: %w", p.ID, err)
	}
	return nil
}

// Download reads the profile object
func (r *S3Remote) Download(ctx context.Context, id string) (*domain.Profile, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key(id)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, nil
		}
		return nil, fmt.Errorf("downloading profile %s: %w", id, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading profile %s: %w", id, err)
	}
	var p domain.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding profile %s: %w", id, err)
	}
	return &p, nil
}
