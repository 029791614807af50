package storage

import (
	appconfig "xetra/internal/config"
)

// NewFromConfig picks the backend for cfg. Without a bucket objects live in
// localRoot on disk.
func NewFromConfig(cfg appconfig.S3Config, localRoot string) (ObjectStore, error) {
	if cfg.Bucket == "" {
		return NewLocalClient(localRoot), nil
	}
	if cfg.Driver == appconfig.DriverMinio {
		return NewMinioClient(cfg)
	}
	return NewS3Client(cfg)
}
