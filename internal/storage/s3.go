package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/bher20/tariffmanager/internal/metrics"
)

type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string // S3-compatible endpoint (minio, R2); empty for AWS
	Prefix   string
}

// S3Storage keeps documents as objects in a bucket. Credentials come from
// the default AWS chain.
type S3Storage struct {
	api    s3iface.S3API
	bucket string
	prefix string
}

func OpenS3(cfg S3Config) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 storage requires a bucket")
	}
	awsCfg := aws.NewConfig()
	if cfg.Region != "" {
		awsCfg = awsCfg.WithRegion(cfg.Region)
	}
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint).WithS3ForcePathStyle(true)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("aws session: %w", err)
	}
	return NewS3(s3.New(sess), cfg.Bucket, cfg.Prefix), nil
}

// NewS3 wraps an existing client.
func NewS3(api s3iface.S3API, bucket, prefix string) *S3Storage {
	return &S3Storage{api: api, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (s *S3Storage) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

func (s *S3Storage) Close() error { return nil }

func (s *S3Storage) Ping(ctx context.Context) error {
	_, err := s.api.HeadBucketWithContext(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return err
}

func (s *S3Storage) GetDocument(ctx context.Context, key string) (*Document, error) {
	out, err := s.api.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, err
	}
	doc := &Document{
		Key:         key,
		ContentType: aws.StringValue(out.ContentType),
		Body:        body,
	}
	if doc.ContentType == "" {
		doc.ContentType = contentTypeFor(key)
	}
	if out.LastModified != nil {
		doc.UpdatedAt = out.LastModified.UTC()
	}
	return doc, nil
}

func (s *S3Storage) PutDocument(ctx context.Context, doc Document) error {
	ct := doc.ContentType
	if ct == "" {
		ct = contentTypeFor(doc.Key)
	}
	_, err := s.api.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(s.objectKey(doc.Key)),
		Body:         bytes.NewReader(doc.Body),
		ContentType:  aws.String(ct),
		CacheControl: aws.String("no-cache"),
		Metadata: map[string]*string{
			"updated-at": aws.String(doc.UpdatedAt.UTC().Format(time.RFC3339)),
		},
	})
	if err != nil {
		return err
	}
	metrics.DocumentWritesTotal.WithLabelValues("s3").Inc()
	return nil
}

func isNotFound(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return false
}

var _ Store = (*S3Storage)(nil)
