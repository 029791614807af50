package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/transfermanager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	appconfig "xetra/internal/config"
)

const (
	defaultPutTimeout      = 5 * time.Minute
	defaultGetTimeout      = 5 * time.Minute
	defaultDeleteTimeout   = 30 * time.Second
	defaultListPageTimeout = 30 * time.Second
)

type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type objectUploader interface {
	UploadObject(ctx context.Context, input *transfermanager.UploadObjectInput, optFns ...func(*transfermanager.Options)) (*transfermanager.UploadObjectOutput, error)
}

type listObjectsV2Paginator interface {
	HasMorePages() bool
	NextPage(ctx context.Context, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type awsListObjectsV2Paginator struct {
	inner *s3.ListObjectsV2Paginator
}

func (p *awsListObjectsV2Paginator) HasMorePages() bool {
	return p.inner != nil && p.inner.HasMorePages()
}

func (p *awsListObjectsV2Paginator) NextPage(ctx context.Context, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if p.inner == nil {
		return nil, errors.New("s3 paginator is not configured")
	}
	return p.inner.NextPage(ctx, optFns...)
}

func newAWSListObjectsV2Paginator(client s3.ListObjectsV2APIClient, input *s3.ListObjectsV2Input) listObjectsV2Paginator {
	return &awsListObjectsV2Paginator{inner: s3.NewListObjectsV2Paginator(client, input)}
}

// S3Client stores objects in an AWS S3 bucket, or any endpoint speaking the
// S3 API, under an optional key prefix.
type S3Client struct {
	api                       s3API
	uploader                  objectUploader
	newListObjectsV2Paginator func(s3.ListObjectsV2APIClient, *s3.ListObjectsV2Input) listObjectsV2Paginator

	bucket string
	prefix string

	putTimeout      time.Duration
	getTimeout      time.Duration
	deleteTimeout   time.Duration
	listPageTimeout time.Duration
}

func NewS3Client(cfg appconfig.S3Config) (*S3Client, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		return nil, errors.New("s3 region is required")
	}
	endpoint, err := normalizeEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	prefix, err := normalizePrefix(cfg.Prefix)
	if err != nil {
		return nil, err
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Client{
		api:                       client,
		uploader:                  transfermanager.New(client),
		newListObjectsV2Paginator: newAWSListObjectsV2Paginator,
		bucket:                    bucket,
		prefix:                    prefix,
		putTimeout:                defaultPutTimeout,
		getTimeout:                defaultGetTimeout,
		deleteTimeout:             defaultDeleteTimeout,
		listPageTimeout:           defaultListPageTimeout,
	}, nil
}

func (c *S3Client) PutObject(key string, data []byte) error {
	if c.uploader == nil {
		return errors.New("s3 uploader is not configured")
	}
	fullKey, err := c.prefixedKey(key)
	if err != nil {
		return err
	}

	ctx, cancel := operationContext(c.putTimeout)
	defer cancel()

	_, err = c.uploader.UploadObject(ctx, &transfermanager.UploadObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(fullKey),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return opError("put object", err)
	}
	return nil
}

func (c *S3Client) GetObject(key string) ([]byte, error) {
	if c.api == nil {
		return nil, errors.New("s3 api client is not configured")
	}
	fullKey, err := c.prefixedKey(key)
	if err != nil {
		return nil, err
	}

	ctx, cancel := operationContext(c.getTimeout)
	defer cancel()

	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(fullKey),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("get object %q: %w", key, ErrNotFound)
		}
		return nil, opError("get object", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, opError("read object body", err)
	}
	return data, nil
}

func (c *S3Client) DeleteObject(key string) error {
	if c.api == nil {
		return errors.New("s3 api client is not configured")
	}
	fullKey, err := c.prefixedKey(key)
	if err != nil {
		return err
	}

	ctx, cancel := operationContext(c.deleteTimeout)
	defer cancel()

	_, err = c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(fullKey),
	})
	if err != nil {
		return opError("delete object", err)
	}
	return nil
}

func (c *S3Client) ListKeys(prefix string) ([]string, error) {
	if c.api == nil {
		return nil, errors.New("s3 api client is not configured")
	}
	if c.newListObjectsV2Paginator == nil {
		return nil, errors.New("s3 paginator factory is not configured")
	}
	listPrefix, err := cleanListPrefix(prefix)
	if err != nil {
		return nil, err
	}

	input := &s3.ListObjectsV2Input{Bucket: aws.String(c.bucket)}
	if full := c.prefix + listPrefix; full != "" {
		input.Prefix = aws.String(full)
	}
	paginator := c.newListObjectsV2Paginator(c.api, input)
	if paginator == nil {
		return nil, errors.New("s3 paginator is not configured")
	}

	keys := make([]string, 0)
	for paginator.HasMorePages() {
		page, err := c.nextPage(paginator)
		if err != nil {
			return nil, opError("list objects", err)
		}
		for _, object := range page.Contents {
			if key, ok := relativeKey(c.prefix, aws.ToString(object.Key), listPrefix); ok {
				keys = append(keys, key)
			}
		}
	}

	sort.Strings(keys)
	return keys, nil
}

func (c *S3Client) nextPage(p listObjectsV2Paginator) (*s3.ListObjectsV2Output, error) {
	ctx, cancel := operationContext(c.listPageTimeout)
	defer cancel()
	return p.NextPage(ctx)
}

func (c *S3Client) prefixedKey(key string) (string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return c.prefix + cleaned, nil
}

func isS3NotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

func normalizeEndpoint(raw string) (string, error) {
	endpoint := strings.TrimSpace(raw)
	if endpoint == "" {
		return "", nil
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("s3 endpoint must be a valid http(s) URL: %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("s3 endpoint must use http or https: %q", raw)
	}
	return strings.TrimSuffix(endpoint, "/"), nil
}

func operationContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), timeout)
}

var _ ObjectStore = (*S3Client)(nil)
