package cli

import (
	"fmt"
	"os"

	"xetra/internal/config"
	"xetra/internal/connector"
	"xetra/internal/logger"
	"xetra/internal/state"
	"xetra/internal/storage"
)

func loadConfig(path string, getenv func(string) string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.ResolveCredentials(getenv)
	return cfg, nil
}

func objectStoreFromConfig(cfg *config.Config) (storage.ObjectStore, error) {
	objectsDir := cfg.Local.Root
	if objectsDir == "" {
		dir, err := state.ObjectStoreDir()
		if err != nil {
			return nil, err
		}
		objectsDir = dir
	}
	store, err := storage.NewFromConfig(cfg.S3, objectsDir)
	if err != nil {
		return nil, fmt.Errorf("create object store: %w", err)
	}
	return store, nil
}

func connectorFromConfig(cfg *config.Config) (*connector.Connector, error) {
	store, err := objectStoreFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg.Log, os.Stderr)
	return connector.New(store, connector.Options{
		Endpoint: cfg.S3.Endpoint,
		Bucket:   cfg.S3.Bucket,
		Logger:   &log,
	}), nil
}

func readOptionsFor(opts readOptions) []connector.ReadOption {
	sep, _ := parseSeparator(opts.Separator)
	return []connector.ReadOption{
		connector.WithSeparator(sep),
		connector.WithEncoding(opts.Encoding),
	}
}
