package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetConfigPath(t *testing.T) {
	originalEnv := os.Getenv("DOORSYNC_CONFIG")
	defer os.Setenv("DOORSYNC_CONFIG", originalEnv)

	os.Unsetenv("DOORSYNC_CONFIG")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	os.Setenv("DOORSYNC_CONFIG", "/etc/doorsync/config.yaml")
	if got := getConfigPath(); got != "/etc/doorsync/config.yaml" {
		t.Errorf("getConfigPath() = %q, want env override", got)
	}
}

// TestRun_InvalidConfig verifies run fails with an invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("DOORSYNC_CONFIG")
	defer os.Setenv("DOORSYNC_CONFIG", originalEnv)

	os.Setenv("DOORSYNC_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_InvalidDoorSet verifies run fails when config validation rejects
// the door set.
func TestRun_InvalidDoorSet(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
controller:
  host: "127.0.0.1"
  port: 8090

doors:
  ids: [1, 1]

logging:
  level: info
  format: text
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("DOORSYNC_CONFIG")
	defer os.Setenv("DOORSYNC_CONFIG", originalEnv)
	os.Setenv("DOORSYNC_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with duplicate door ids")
	}
}
