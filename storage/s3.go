package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// objectAPI is the subset of the S3 client the store needs.
type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Options configures an S3-compatible bucket such as DigitalOcean Spaces.
type S3Options struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	PublicURL string
	Prefix    string
	MaxBytes  int64
}

// S3Store keeps photos in an S3-compatible bucket with public-read objects.
type S3Store struct {
	client    objectAPI
	bucket    string
	publicURL string
	prefix    string
	maxBytes  int64
	now       func() time.Time
}

// NewS3Store loads credentials and builds the bucket client.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if opts.Bucket == "" || opts.Region == "" {
		return nil, errors.New("s3 bucket and region are required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})

	publicURL := opts.PublicURL
	if publicURL == "" {
		publicURL = fmt.Sprintf("https://%s.%s.digitaloceanspaces.com", opts.Bucket, opts.Region)
	}
	return newS3Store(client, opts.Bucket, publicURL, opts.Prefix, opts.MaxBytes), nil
}

func newS3Store(client objectAPI, bucket, publicURL, prefix string, maxBytes int64) *S3Store {
	if maxBytes <= 0 {
		maxBytes = 10 * 1024 * 1024
	}
	return &S3Store{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimSuffix(publicURL, "/"),
		prefix:    strings.Trim(prefix, "/"),
		maxBytes:  maxBytes,
		now:       time.Now,
	}
}

func (s *S3Store) Save(ctx context.Context, upload *Upload) (string, error) {
	data, contentType, ext, err := readImage(upload, s.maxBytes)
	if err != nil {
		return "", err
	}

	key := path.Join(s.prefix, objectName(s.now(), ext))
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         bytesBody(data),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("public, max-age=31536000"),
		ACL:          types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("upload photo: %w", err)
	}
	return s.publicURL + "/" + key, nil
}

func (s *S3Store) Delete(ctx context.Context, url string) error {
	key, ok := ownedKey(s.publicURL, url)
	if !ok {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete photo %s: %w", key, err)
	}
	return nil
}
