// File path: internal/artifact/signer.go
package artifact

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// URLSigner issues time-boxed signed URLs for remote objects.
type URLSigner interface {
	SignGetObject(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

// S3Signer presigns GET requests against S3-compatible object storage.
type S3Signer struct {
	presigner *s3.PresignClient
}

// NewS3Signer builds a signer for the given region using the ambient AWS
// credential chain.
func NewS3Signer(ctx context.Context, region string) (*S3Signer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3Signer{presigner: s3.NewPresignClient(client)}, nil
}

// SignGetObject implements URLSigner.
func (s *S3Signer) SignGetObject(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if s == nil || s.presigner == nil {
		return "", fmt.Errorf("signer not configured")
	}
	request, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign %s/%s: %w", bucket, key, err)
	}
	return request.URL, nil
}
