package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	appconfig "xetra/internal/config"
)

type minioAPI interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
}

// minioCore narrows GetObject to a plain ReadCloser.
type minioCore struct {
	*minio.Client
}

func (m minioCore) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	return m.Client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
}

// MinioClient stores objects through the MinIO SDK. It suits self-hosted
// S3-compatible services that need path-style requests and static keys.
type MinioClient struct {
	api    minioAPI
	bucket string
	prefix string

	putTimeout    time.Duration
	getTimeout    time.Duration
	deleteTimeout time.Duration
	listTimeout   time.Duration
}

func NewMinioClient(cfg appconfig.S3Config) (*MinioClient, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	endpoint, err := normalizeEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	if endpoint == "" {
		return nil, errors.New("s3 endpoint is required for minio")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse s3 endpoint: %w", err)
	}
	prefix, err := normalizePrefix(cfg.Prefix)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(u.Host, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       u.Scheme == "https",
		Region:       strings.TrimSpace(cfg.Region),
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &MinioClient{
		api:           minioCore{client},
		bucket:        bucket,
		prefix:        prefix,
		putTimeout:    defaultPutTimeout,
		getTimeout:    defaultGetTimeout,
		deleteTimeout: defaultDeleteTimeout,
		listTimeout:   defaultListPageTimeout,
	}, nil
}

func (c *MinioClient) PutObject(key string, data []byte) error {
	if c.api == nil {
		return errors.New("minio client is not configured")
	}
	fullKey, err := c.prefixedKey(key)
	if err != nil {
		return err
	}

	ctx, cancel := operationContext(c.putTimeout)
	defer cancel()

	_, err = c.api.PutObject(ctx, c.bucket, fullKey, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	if err != nil {
		return opError("put object", err)
	}
	return nil
}

func (c *MinioClient) GetObject(key string) ([]byte, error) {
	if c.api == nil {
		return nil, errors.New("minio client is not configured")
	}
	fullKey, err := c.prefixedKey(key)
	if err != nil {
		return nil, err
	}

	ctx, cancel := operationContext(c.getTimeout)
	defer cancel()

	body, err := c.api.GetObject(ctx, c.bucket, fullKey)
	if err != nil {
		if isMinioNotFound(err) {
			return nil, fmt.Errorf("get object %q: %w", key, ErrNotFound)
		}
		return nil, opError("get object", err)
	}
	defer body.Close()

	// minio defers the request until the first read, so a missing key
	// surfaces here.
	data, err := io.ReadAll(body)
	if err != nil {
		if isMinioNotFound(err) {
			return nil, fmt.Errorf("get object %q: %w", key, ErrNotFound)
		}
		return nil, opError("read object body", err)
	}
	return data, nil
}

func (c *MinioClient) DeleteObject(key string) error {
	if c.api == nil {
		return errors.New("minio client is not configured")
	}
	fullKey, err := c.prefixedKey(key)
	if err != nil {
		return err
	}

	ctx, cancel := operationContext(c.deleteTimeout)
	defer cancel()

	if err := c.api.RemoveObject(ctx, c.bucket, fullKey, minio.RemoveObjectOptions{}); err != nil {
		return opError("delete object", err)
	}
	return nil
}

func (c *MinioClient) ListKeys(prefix string) ([]string, error) {
	if c.api == nil {
		return nil, errors.New("minio client is not configured")
	}
	listPrefix, err := cleanListPrefix(prefix)
	if err != nil {
		return nil, err
	}

	ctx, cancel := operationContext(c.listTimeout)
	defer cancel()

	keys := make([]string, 0)
	objects := c.api.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
		Prefix:    c.prefix + listPrefix,
		Recursive: true,
	})
	for object := range objects {
		if object.Err != nil {
			return nil, opError("list objects", object.Err)
		}
		if key, ok := relativeKey(c.prefix, object.Key, listPrefix); ok {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)
	return keys, nil
}

func (c *MinioClient) prefixedKey(key string) (string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return c.prefix + cleaned, nil
}

func isMinioNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}

var _ ObjectStore = (*MinioClient)(nil)
