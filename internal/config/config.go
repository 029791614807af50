package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"xetra/internal/tabular"
)

const (
	DriverAWS   = "aws"
	DriverMinio = "minio"

	AccessKeyEnv = "AWS_ACCESS_KEY_ID"
	SecretKeyEnv = "AWS_SECRET_ACCESS_KEY"
)

type Config struct {
	S3     S3Config     `toml:"s3"`
	Local  LocalConfig  `toml:"local"`
	Log    LogConfig    `toml:"log"`
	Output OutputConfig `toml:"output"`
}

// S3Config identifies the bucket. Credentials are never read from the file;
// ResolveCredentials fills them once at startup.
type S3Config struct {
	Driver   string `toml:"driver"`
	Endpoint string `toml:"endpoint"`
	Region   string `toml:"region"`
	Bucket   string `toml:"bucket"`
	Prefix   string `toml:"prefix"`

	AccessKey string `toml:"-"`
	SecretKey string `toml:"-"`
}

// LocalConfig is used when no bucket is configured.
type LocalConfig struct {
	Root string `toml:"root"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type OutputConfig struct {
	Format string `toml:"format"`
}

func DefaultConfig() *Config {
	return &Config{
		S3: S3Config{
			Driver: DriverAWS,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Output: OutputConfig{
			Format: "csv",
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.S3.Driver == "" {
		c.S3.Driver = DriverAWS
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Output.Format == "" {
		c.Output.Format = "csv"
	}
}

func (c *Config) Normalize() {
	c.S3.Driver = strings.ToLower(strings.TrimSpace(c.S3.Driver))
	c.S3.Endpoint = strings.TrimSpace(c.S3.Endpoint)
	c.S3.Region = strings.TrimSpace(c.S3.Region)
	c.S3.Bucket = strings.TrimSpace(c.S3.Bucket)
	c.S3.Prefix = strings.TrimSpace(c.S3.Prefix)
	if c.S3.Prefix != "" && !strings.HasSuffix(c.S3.Prefix, "/") {
		c.S3.Prefix += "/"
	}
	c.Local.Root = strings.TrimSpace(c.Local.Root)
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	c.Output.Format = strings.ToLower(strings.TrimSpace(c.Output.Format))
}

func (c *Config) Validate() error {
	switch c.S3.Driver {
	case "", DriverAWS, DriverMinio:
	default:
		return errors.New("s3.driver must be aws or minio")
	}
	if c.S3.Bucket == "" {
		if c.S3.Region != "" || c.S3.Endpoint != "" {
			return errors.New("s3.bucket is required when s3.region or s3.endpoint is set")
		}
	} else {
		if strings.Contains(c.S3.Bucket, "/") {
			return errors.New("s3.bucket must not contain '/'")
		}
		if c.S3.Driver == DriverMinio && c.S3.Endpoint == "" {
			return errors.New("s3.endpoint is required for the minio driver")
		}
		if c.S3.Driver != DriverMinio && c.S3.Region == "" {
			return errors.New("s3.region is required when s3.bucket is set")
		}
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		return errors.New("log format must be console or json")
	}
	if c.Output.Format != "" {
		if _, err := tabular.ParseFormat(c.Output.Format); err != nil {
			return fmt.Errorf("output format: %w", err)
		}
	}
	return nil
}

// ResolveCredentials copies access keys from the environment into the S3
// section unless they are already set.
func (c *Config) ResolveCredentials(getenv func(string) string) {
	if c.S3.AccessKey == "" {
		c.S3.AccessKey = strings.TrimSpace(getenv(AccessKeyEnv))
	}
	if c.S3.SecretKey == "" {
		c.S3.SecretKey = strings.TrimSpace(getenv(SecretKeyEnv))
	}
}
