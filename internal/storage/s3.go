package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const (
	documentPrefix      = "documents/"
	pdfContentType      = "application/pdf"
	sourceIDMetadataKey = "source-id"
)

// S3ClientConfig holds configuration for S3Client
type S3ClientConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UsePathStyle    bool
}

// S3Client archives source PDFs in S3-compatible storage (e.g., RustFS)
type S3Client struct {
	client *s3.Client
	bucket string
}

// NewS3Client creates a new S3Client with the given configuration
func NewS3Client(ctx context.Context, cfg S3ClientConfig) (*S3Client, error) {
	// Custom resolver for S3-compatible endpoints
	customResolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			if cfg.Endpoint != "" {
				return aws.Endpoint{
					URL:               cfg.Endpoint,
					HostnameImmutable: true,
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		},
	)

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
		config.WithEndpointResolverWithOptions(customResolver),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Client{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// DocumentKey returns the object key under which a source document is
// archived: documents/<uuid5 of the full source id>/<base name>. Source ids
// that share a base name never share an object.
func DocumentKey(sourceID string) string {
	name := path.Base(strings.ReplaceAll(sourceID, "\\", "/"))
	if name == "." || name == "/" {
		name = "document"
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(sourceID))
	return documentPrefix + id.String() + "/" + name
}

// PutDocument uploads a source PDF and returns its object key.
func (c *S3Client) PutDocument(ctx context.Context, sourceID string, data []byte) (string, error) {
	key := DocumentKey(sourceID)
	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(pdfContentType),
		Metadata:      map[string]string{sourceIDMetadataKey: sourceID},
	})
	if err != nil {
		return "", fmt.Errorf("failed to put document %s: %w", key, err)
	}
	return key, nil
}

// Document is an archived PDF and the source id it was stored under.
type Document struct {
	Key      string
	SourceID string
	Data     []byte
}

// GetDocument downloads an archived PDF. The source id falls back to the
// key's base name when the object carries no metadata.
func (c *S3Client) GetDocument(ctx context.Context, key string) (*Document, error) {
	output, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", key, err)
	}
	defer output.Body.Close()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", key, err)
	}

	sourceID := output.Metadata[sourceIDMetadataKey]
	if sourceID == "" {
		sourceID = path.Base(key)
	}
	return &Document{Key: key, SourceID: sourceID, Data: data}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (c *S3Client) EnsureBucket(ctx context.Context) error {
	_, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err == nil {
		return nil
	}

	_, err = c.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	return nil
}
