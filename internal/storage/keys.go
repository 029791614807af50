package storage

import (
	"errors"
	"fmt"
	"strings"
)

// cleanKey converts backslashes to slashes and rejects keys that are empty,
// absolute, or contain empty, "." or ".." segments.
func cleanKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("%w: key is empty", ErrInvalidKey)
	}
	normalized := strings.ReplaceAll(key, "\\", "/")
	if strings.HasPrefix(normalized, "/") {
		return "", fmt.Errorf("%w: %q is absolute", ErrInvalidKey, key)
	}
	for _, segment := range strings.Split(normalized, "/") {
		switch segment {
		case "", ".", "..":
			return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return normalized, nil
}

// cleanListPrefix validates a listing prefix. Unlike a key it may be empty,
// end with a slash, or stop partway through a segment.
func cleanListPrefix(prefix string) (string, error) {
	if prefix == "" {
		return "", nil
	}
	normalized := strings.ReplaceAll(prefix, "\\", "/")
	if strings.HasPrefix(normalized, "/") {
		return "", fmt.Errorf("%w: prefix %q is absolute", ErrInvalidKey, prefix)
	}
	segments := strings.Split(normalized, "/")
	for i, segment := range segments {
		last := i == len(segments)-1
		if segment == ".." || (segment == "." && !last) || (segment == "" && !last) {
			return "", fmt.Errorf("%w: prefix %q", ErrInvalidKey, prefix)
		}
	}
	return normalized, nil
}

// normalizePrefix turns a configured bucket prefix into "a/b/" form.
func normalizePrefix(prefix string) (string, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(prefix), "\\", "/")
	if normalized == "" {
		return "", nil
	}
	if strings.HasPrefix(normalized, "/") {
		return "", errors.New("s3 prefix must be relative")
	}

	parts := make([]string, 0)
	for _, segment := range strings.Split(normalized, "/") {
		switch segment {
		case "":
			continue
		case ".", "..":
			return "", errors.New("s3 prefix must not contain . or .. segments")
		}
		parts = append(parts, segment)
	}
	if len(parts) == 0 {
		return "", nil
	}
	return strings.Join(parts, "/") + "/", nil
}

// relativeKey strips the store prefix from a listed key. Directory markers
// and keys outside the requested list prefix are dropped.
func relativeKey(storePrefix, fullKey, listPrefix string) (string, bool) {
	if fullKey == "" || !strings.HasPrefix(fullKey, storePrefix) {
		return "", false
	}
	key := strings.ReplaceAll(strings.TrimPrefix(fullKey, storePrefix), "\\", "/")
	if key == "" || strings.HasSuffix(key, "/") || !strings.HasPrefix(key, listPrefix) {
		return "", false
	}
	return key, true
}
