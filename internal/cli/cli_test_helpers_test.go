package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	original := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w

	runErr := fn()
	_ = w.Close()
	os.Stdout = original

	out, readErr := io.ReadAll(r)
	_ = r.Close()
	if readErr != nil {
		t.Fatalf("read stdout: %v", readErr)
	}
	return string(out), runErr
}

func setCLIHome(t *testing.T) {
	t.Helper()

	homeDir := t.TempDir()
	t.Setenv("HOME", homeDir)
	t.Setenv("XDG_CONFIG_HOME", homeDir)
}

// writeLocalConfig writes a config that keeps objects under a temp root and
// returns the config path and that root.
func writeLocalConfig(t *testing.T, extra string) (string, string) {
	t.Helper()

	root := filepath.Join(t.TempDir(), "objects")
	configPath := filepath.Join(t.TempDir(), "config.toml")
	text := fmt.Sprintf(`[local]
root = '%s'

[log]
level = "error"
format = "json"
%s`, root, extra)
	if err := os.WriteFile(configPath, []byte(text), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return configPath, root
}

func noEnv(string) string { return "" }
