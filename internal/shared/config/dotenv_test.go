package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := `# local overrides
export VG_TEST_EXPORTED=yes
VG_TEST_QUOTED="postgres://localhost/veriglow"
VG_TEST_COMMENTED=30 # per minute
VG_TEST_PRESET=from-file
not-a-pair
`
	if err := os.WriteFile(envFile, []byte(content), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	for _, key := range []string{"VG_TEST_EXPORTED", "VG_TEST_QUOTED", "VG_TEST_COMMENTED"} {
		os.Unsetenv(key)
		key := key
		t.Cleanup(func() { os.Unsetenv(key) })
	}
	t.Setenv("VG_TEST_PRESET", "from-process")

	loadEnvFiles(envFile, filepath.Join(dir, "missing.env"))

	if got := os.Getenv("VG_TEST_EXPORTED"); got != "yes" {
		t.Fatalf("VG_TEST_EXPORTED = %q", got)
	}
	if got := os.Getenv("VG_TEST_QUOTED"); got != "postgres://localhost/veriglow" {
		t.Fatalf("VG_TEST_QUOTED = %q", got)
	}
	if got := os.Getenv("VG_TEST_COMMENTED"); got != "30" {
		t.Fatalf("VG_TEST_COMMENTED = %q", got)
	}
	if got := os.Getenv("VG_TEST_PRESET"); got != "from-process" {
		t.Fatalf("process env overridden: %q", got)
	}
}
