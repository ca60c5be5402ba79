package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectConfig locates an S3-compatible bucket.
type ObjectConfig struct {
	Endpoint  string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	Secure    bool
}

// ObjectBackend keeps one JSON document per object in a bucket, named
// <prefix><category>/<key>.json.
type ObjectBackend struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewObjectBackend connects to the endpoint and creates the bucket if it
// does not exist yet.
func NewObjectBackend(ctx context.Context, cfg ObjectConfig) (*ObjectBackend, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 endpoint and bucket are required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &ObjectBackend{
		client: client,
		bucket: cfg.Bucket,
		prefix: normalizePrefix(cfg.Prefix),
	}, nil
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

func (b *ObjectBackend) categoryPrefix(category string) string {
	return b.prefix + escapeSegment(category) + "/"
}

func (b *ObjectBackend) objectName(category, key string) string {
	return b.categoryPrefix(category) + escapeSegment(key) + docExt
}

func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

func (b *ObjectBackend) Read(ctx context.Context, category, key string) ([]byte, bool, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, b.objectName(category, key), minio.GetObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer obj.Close()

	raw, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return raw, true, nil
}

func (b *ObjectBackend) Write(ctx context.Context, category, key string, raw []byte) error {
	_, err := b.client.PutObject(ctx, b.bucket, b.objectName(category, key),
		bytes.NewReader(raw), int64(len(raw)),
		minio.PutObjectOptions{ContentType: "application/json"})
	return err
}

func (b *ObjectBackend) Remove(ctx context.Context, category, key string) error {
	err := b.client.RemoveObject(ctx, b.bucket, b.objectName(category, key), minio.RemoveObjectOptions{})
	if err != nil && isNoSuchKey(err) {
		return nil
	}
	return err
}

func (b *ObjectBackend) Keys(ctx context.Context, category string) ([]string, error) {
	prefix := b.categoryPrefix(category)
	var keys []string
	for info := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if info.Err != nil {
			return nil, info.Err
		}
		name := strings.TrimPrefix(info.Key, prefix)
		if strings.Contains(name, "/") || !strings.HasSuffix(name, docExt) {
			continue
		}
		key, err := unescapeSegment(strings.TrimSuffix(name, docExt))
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (b *ObjectBackend) Categories(ctx context.Context) ([]string, error) {
	var cats []string
	for info := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{Prefix: b.prefix}) {
		if info.Err != nil {
			return nil, info.Err
		}
		name := strings.TrimPrefix(info.Key, b.prefix)
		if !strings.HasSuffix(name, "/") {
			continue
		}
		cat, err := unescapeSegment(strings.TrimSuffix(name, "/"))
		if err != nil {
			continue
		}
		cats = append(cats, cat)
	}
	return cats, nil
}

func (b *ObjectBackend) Close() error {
	return nil
}
