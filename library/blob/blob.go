// Package blob stores text objects in an S3-compatible bucket.
package blob

import (
	"context"
	"path"
	"strings"

	errors "github.com/Laisky/errors/v2"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config locates a bucket.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	// Prefix is prepended to every object key.
	Prefix string
	Secure bool
}

// Bucket writes objects into one bucket.
type Bucket struct {
	cli    *minio.Client
	bucket string
	prefix string
}

// New connects to the endpoint and creates the bucket when missing.
func New(ctx context.Context, cfg Config) (*Bucket, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("blob endpoint and bucket are required")
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "new minio client for %s", cfg.Endpoint)
	}

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, errors.Wrapf(err, "check bucket %s", cfg.Bucket)
	}
	if !exists {
		if err = cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, errors.Wrapf(err, "make bucket %s", cfg.Bucket)
		}
	}

	return &Bucket{
		cli:    cli,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// ObjectKey returns the full key of key inside the bucket.
func (b *Bucket) ObjectKey(key string) string {
	key = strings.TrimLeft(key, "/")
	if b.prefix == "" {
		return key
	}
	return path.Join(b.prefix, key)
}

// PutText uploads content under key.
func (b *Bucket) PutText(ctx context.Context, key, content, contentType string) error {
	objkey := b.ObjectKey(key)
	_, err := b.cli.PutObject(ctx, b.bucket, objkey,
		strings.NewReader(content),
		int64(len(content)),
		minio.PutObjectOptions{
			ContentType: contentType,
		},
	)
	if err != nil {
		return errors.Wrapf(err, "put object %s", objkey)
	}
	return nil
}

// Remove deletes key, a missing object is not an error.
func (b *Bucket) Remove(ctx context.Context, key string) error {
	objkey := b.ObjectKey(key)
	if err := b.cli.RemoveObject(ctx, b.bucket, objkey, minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrapf(err, "remove object %s", objkey)
	}
	return nil
}
