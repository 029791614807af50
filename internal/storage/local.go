package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const tempPattern = ".xetra-tmp-*"

// LocalClient keeps objects as files below a root directory.
type LocalClient struct {
	rootDir string
}

func NewLocalClient(rootDir string) *LocalClient {
	return &LocalClient{rootDir: rootDir}
}

// PutObject writes to a temporary file and renames it into place so readers
// never observe a partial object.
func (c *LocalClient) PutObject(key string, data []byte) error {
	fullPath, err := c.objectPath(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return opError("put object", err)
	}

	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return opError("put object", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return opError("put object", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return opError("put object", err)
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return opError("put object", err)
	}
	return nil
}

func (c *LocalClient) GetObject(key string) ([]byte, error) {
	fullPath, err := c.objectPath(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("get object %q: %w", key, ErrNotFound)
		}
		return nil, opError("get object", err)
	}
	return data, nil
}

func (c *LocalClient) DeleteObject(key string) error {
	fullPath, pathErr := c.objectPath(key)
	if pathErr != nil {
		return pathErr
	}
	err := os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return opError("delete object", err)
	}
	return nil
}

func (c *LocalClient) ListKeys(prefix string) ([]string, error) {
	listPrefix, err := cleanListPrefix(prefix)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(c.rootDir); err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, opError("list objects", err)
	}

	keys := make([]string, 0)
	err = filepath.WalkDir(c.rootDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if matched, _ := filepath.Match(tempPattern, d.Name()); matched {
			return nil
		}

		rel, err := filepath.Rel(c.rootDir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, listPrefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, opError("list objects", err)
	}

	sort.Strings(keys)
	return keys, nil
}

func (c *LocalClient) objectPath(key string) (string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(c.rootDir, filepath.FromSlash(cleaned)), nil
}

var _ ObjectStore = (*LocalClient)(nil)
