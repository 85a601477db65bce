package publish

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config addresses a bucket on AWS S3 or an S3-compatible store.
// Credentials come from the default AWS chain.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string // optional, e.g. MinIO or R2
	Prefix    string
	PathStyle bool
}

// ObjectPutter is the slice of the S3 client used here.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 uploads each artifact under prefix/<basename>, overwriting.
type S3 struct {
	cfg    S3Config
	client ObjectPutter
}

func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &S3{cfg: cfg, client: client}, nil
}

// NewS3WithClient is NewS3 with an explicit client.
func NewS3WithClient(cfg S3Config, client ObjectPutter) *S3 {
	return &S3{cfg: cfg, client: client}
}

func (s *S3) Name() string { return "s3" }

func (s *S3) Publish(ctx context.Context, a Artifacts) error {
	for _, p := range a.Paths() {
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		key := s.Key(p)
		in := &s3.PutObjectInput{
			Bucket:      aws.String(s.cfg.Bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(b),
			ContentType: aws.String(contentType(p)),
		}
		if !a.At.IsZero() {
			in.Metadata = map[string]string{"generated-at": a.At.UTC().Format("2006-01-02T15:04:05Z")}
		}
		if _, err := s.client.PutObject(ctx, in); err != nil {
			return fmt.Errorf("put %s: %w", key, err)
		}
	}
	return nil
}

// Key maps a local artifact path to its object key.
func (s *S3) Key(p string) string {
	prefix := strings.Trim(s.cfg.Prefix, "/")
	base := filepath.Base(p)
	if prefix == "" {
		return base
	}
	return path.Join(prefix, base)
}

func contentType(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".json":
		return "application/json"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
