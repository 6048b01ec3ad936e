package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{
		0:           "0 B",
		1023:        "1023 B",
		1024:        "1.0 KB",
		1536:        "1.5 KB",
		5 * 1 << 20: "5.0 MB",
	}
	for in, want := range tests {
		if got := formatBytes(in); got != want {
			t.Errorf("formatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestGetSysHealth(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "metrics.db"), make([]byte, 2048), 0o644); err != nil {
		t.Fatal(err)
	}

	h := GetSysHealth(filepath.Join(dir, "metrics.db"), time.Now().Add(-time.Minute))
	if h.DataDiskSize != "2.0 KB" {
		t.Errorf("Expected 2.0 KB, got %s", h.DataDiskSize)
	}
	if h.Goroutines < 1 {
		t.Error("Expected at least one goroutine")
	}
	if h.Uptime != "1m0s" {
		t.Errorf("Expected uptime 1m0s, got %s", h.Uptime)
	}
}
