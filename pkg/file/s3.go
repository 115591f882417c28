package file

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Client is the subset of *s3.Client used by S3Storage.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config is read from the environment. Storage falls back to disk when
// Bucket is empty.
type Config struct {
	Bucket         string `env:"S3_BUCKET"`
	Region         string `env:"S3_REGION" envDefault:"us-east-1"`
	AccessKeyID    string `env:"S3_ACCESS_KEY_ID"`
	SecretKey      string `env:"S3_SECRET_KEY"`
	Endpoint       string `env:"S3_ENDPOINT"`
	BaseURL        string `env:"S3_BASE_URL"`
	ForcePathStyle bool   `env:"S3_FORCE_PATH_STYLE" envDefault:"false"`
	LocalDir       string `env:"UPLOADS_DIR" envDefault:"./uploads"`
	LocalBaseURL   string `env:"UPLOADS_BASE_URL" envDefault:"/uploads/"`
}

// Enabled reports whether a bucket is configured.
func (c Config) Enabled() bool { return c.Bucket != "" }

// S3Storage stores objects in one bucket. It is safe for concurrent use.
type S3Storage struct {
	client  S3Client
	bucket  string
	baseURL string
}

// S3Option configures NewS3Storage.
type S3Option func(*s3Options)

type s3Options struct {
	client     S3Client
	loadOpts   []func(*config.LoadOptions) error
	clientOpts []func(*s3.Options)
}

// WithS3Client replaces the SDK client, typically with a mock.
func WithS3Client(client S3Client) S3Option {
	return func(o *s3Options) { o.client = client }
}

// WithConfigOption adds an AWS config load option.
func WithConfigOption(opt func(*config.LoadOptions) error) S3Option {
	return func(o *s3Options) { o.loadOpts = append(o.loadOpts, opt) }
}

// WithS3ClientOption adds an S3 client option.
func WithS3ClientOption(opt func(*s3.Options)) S3Option {
	return func(o *s3Options) { o.clientOpts = append(o.clientOpts, opt) }
}

// NewS3Storage builds the SDK client from cfg unless WithS3Client is given.
func NewS3Storage(ctx context.Context, cfg Config, opts ...S3Option) (*S3Storage, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, fmt.Errorf("%w: bucket and region are required", ErrInvalidConfig)
	}

	o := &s3Options{}
	for _, opt := range opts {
		opt(o)
	}

	client := o.client
	if client == nil {
		loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
		if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
			loadOpts = append(loadOpts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, ""),
			))
		}
		loadOpts = append(loadOpts, o.loadOpts...)

		awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFailedToLoadConfig, err)
		}
		client = s3.NewFromConfig(awsCfg, func(so *s3.Options) {
			if cfg.Endpoint != "" {
				so.BaseEndpoint = aws.String(cfg.Endpoint)
			}
			so.UsePathStyle = cfg.ForcePathStyle
			for _, opt := range o.clientOpts {
				opt(so)
			}
		})
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		if cfg.Endpoint != "" {
			baseURL = strings.TrimSuffix(cfg.Endpoint, "/") + "/" + cfg.Bucket
		} else {
			baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		}
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	return &S3Storage{client: client, bucket: cfg.Bucket, baseURL: baseURL}, nil
}

// Save uploads fh under key, overwriting any existing object.
func (s *S3Storage) Save(ctx context.Context, fh *multipart.FileHeader, key string) (*File, error) {
	if fh == nil {
		return nil, ErrNilFileHeader
	}
	key, err := cleanKey(key)
	if err != nil {
		return nil, err
	}

	mimeType, err := DetectMIMEType(fh)
	if err != nil {
		mimeType = "application/octet-stream"
	}

	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToOpenFile, err)
	}
	defer func() { _ = src.Close() }()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          src,
		ContentType:   aws.String(mimeType),
		ContentLength: aws.Int64(fh.Size),
	})
	if err != nil {
		return nil, classifyS3Error(err, "upload file")
	}

	return &File{
		Filename: SanitizeFilename(fh.Filename),
		Key:      key,
		Size:     fh.Size,
		MIMEType: mimeType,
		URL:      s.URL(key),
	}, nil
}

// Delete removes key. Deleting a missing key is not an error in S3.
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return classifyS3Error(err, "delete file")
}

// URL returns the public URL of key.
func (s *S3Storage) URL(key string) string {
	return s.baseURL + strings.TrimPrefix(key, "/")
}

func classifyS3Error(err error, operation string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrOperationTimeout, operation)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s", ErrOperationCanceled, operation)
	}

	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return fmt.Errorf("%w: %s", ErrFileNotFound, err)
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return ErrBucketNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch code := apiErr.ErrorCode(); code {
		case "AccessDenied":
			return fmt.Errorf("%w: %s", ErrAccessDenied, operation)
		case "SlowDown", "ServiceUnavailable", "RequestTimeout":
			return fmt.Errorf("%w: %s", ErrServiceUnavailable, operation)
		case "NoSuchKey":
			return fmt.Errorf("%w: %s", ErrFileNotFound, err)
		case "NoSuchBucket":
			return ErrBucketNotFound
		default:
			return fmt.Errorf("%s failed (code: %s): %w", operation, code, err)
		}
	}
	return fmt.Errorf("%s failed: %w", operation, err)
}
