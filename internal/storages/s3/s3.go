package s3

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/shyim/docker-pg-backup/internal/storage"
)

func init() {
	storage.Register(&S3StorageType{})
}

// S3StorageType is the factory for S3 storage
type S3StorageType struct{}

// Name returns the storage type identifier
func (t *S3StorageType) Name() string {
	return "s3"
}

// Create instantiates a new S3 storage from options
func (t *S3StorageType) Create(poolName string, options map[string]string) (storage.Storage, error) {
	bucket, ok := options["bucket"]
	if !ok || bucket == "" {
		return nil, fmt.Errorf("S3 storage requires 'bucket' option")
	}

	region := options["region"]
	if region == "" {
		region = "us-east-1"
	}

	endpoint := options["endpoint"]
	accessKey := options["access-key"]
	secretKey := options["secret-key"]
	pathStyle := options["path-style"] == "true"

	var cfgOpts []func(*config.LoadOptions) error
	cfgOpts = append(cfgOpts, config.WithRegion(region))

	if accessKey != "" && secretKey != "" {
		cfgOpts = append(cfgOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(context.Background(), cfgOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = pathStyle
	})

	return &S3Storage{
		client:   client,
		bucket:   bucket,
		prefix:   strings.Trim(options["prefix"], "/"),
		poolName: poolName,
	}, nil
}

// objectAPI is the subset of the S3 client used by S3Storage
type objectAPI interface {
	s3.ListObjectsV2APIClient
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Storage implements Storage for S3-compatible backends
type S3Storage struct {
	client   objectAPI
	bucket   string
	prefix   string
	poolName string
}

// Store uploads backup data. Non-seekable readers are spooled to a
// temporary file first so the request can be signed and retried.
func (s *S3Storage) Store(ctx context.Context, key string, reader io.Reader) error {
	body, ok := reader.(io.ReadSeeker)
	if !ok {
		tmp, err := os.CreateTemp("", "s3-upload-*")
		if err != nil {
			return fmt.Errorf("failed to create temp file: %w", err)
		}
		defer os.Remove(tmp.Name())
		defer tmp.Close()

		if _, err := io.Copy(tmp, reader); err != nil {
			return fmt.Errorf("failed to spool upload: %w", err)
		}
		if _, err := tmp.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("failed to rewind upload: %w", err)
		}
		body = tmp
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.fullKey(key)),
		Body:        body,
		ContentType: aws.String("application/x-tar"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}

	return nil
}

// List returns every object below folder
func (s *S3Storage) List(ctx context.Context, folder string) ([]storage.Entry, error) {
	listPrefix := s.fullKey(folder)
	if listPrefix != "" {
		listPrefix += "/"
	}

	var entries []storage.Entry
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(listPrefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			rel := strings.TrimPrefix(key, listPrefix)
			if rel == "" || strings.HasSuffix(rel, "/") {
				continue // directory marker
			}

			entries = append(entries, storage.Entry{
				Name:    path.Base(rel),
				Path:    rel,
				Size:    aws.ToInt64(obj.Size),
				ModTime: aws.ToTime(obj.LastModified).UTC().Format(time.RFC3339Nano),
			})
		}
	}

	return entries, nil
}

// Delete removes a backup from S3. S3 deletes are idempotent.
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}

	return nil
}

// RemoveEmptyDirs is a no-op: object stores have no directories
func (s *S3Storage) RemoveEmptyDirs(ctx context.Context, folder string) error {
	return nil
}

// fullKey returns the full S3 key including any prefix
func (s *S3Storage) fullKey(key string) string {
	key = strings.Trim(key, "/")
	switch {
	case s.prefix == "":
		return key
	case key == "":
		return s.prefix
	default:
		return s.prefix + "/" + key
	}
}
