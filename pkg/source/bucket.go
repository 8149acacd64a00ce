package source

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// BucketConfig configures an S3-compatible bucket holding exports
type BucketConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// BucketLocator finds exports under a prefix in an S3-compatible bucket
type BucketLocator struct {
	client objectLister
	bucket string
	prefix string
}

var _ Locator = &BucketLocator{}

// objectLister is the subset of *minio.Client the locator uses
type objectLister interface {
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	GetObject(ctx context.Context, bucket, object string, opts minio.GetObjectOptions) (*minio.Object, error)
}

// NewBucketLocator connects to the bucket described by cfg
func NewBucketLocator(cfg BucketConfig) (*BucketLocator, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("bucket endpoint is required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init bucket client: %w", err)
	}
	return &BucketLocator{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func (l *BucketLocator) Locate(ctx context.Context, table string) (string, bool, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	keyPrefix := table + "-export"
	if l.prefix != "" {
		keyPrefix = l.prefix + "/" + keyPrefix
	}

	names := make([]string, 0)
	keys := make(map[string]string)
	for obj := range l.client.ListObjects(ctx, l.bucket, minio.ListObjectsOptions{Prefix: keyPrefix}) {
		if obj.Err != nil {
			return "", false, fmt.Errorf("listing %s/%s: %w", l.bucket, keyPrefix, obj.Err)
		}
		name := path.Base(obj.Key)
		names = append(names, name)
		keys[name] = obj.Key
	}

	name, ok := firstMatch(table, names)
	if !ok {
		return "", false, nil
	}
	return keys[name], true, nil
}

func (l *BucketLocator) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return l.client.GetObject(ctx, l.bucket, key, minio.GetObjectOptions{})
}
