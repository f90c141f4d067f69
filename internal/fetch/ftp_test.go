package fetch

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAlreadyLocal(t *testing.T) {
	dir := t.TempDir()

	if alreadyLocal(dir, "00001.SP") {
		t.Error("missing file reported as local")
	}

	if err := os.WriteFile(filepath.Join(dir, "00001.SP"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !alreadyLocal(dir, "00001.SP") {
		t.Error("present file not reported as local")
	}

	// Archived files count too, otherwise every sync re-downloads what the
	// coordinator already moved to uploaded/.
	if err := os.MkdirAll(filepath.Join(dir, "uploaded"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "uploaded", "00002.SP"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !alreadyLocal(dir, "00002.SP") {
		t.Error("archived file not reported as local")
	}
}

func TestSyncerDefaults(t *testing.T) {
	s := NewSyncer(Config{})
	if s.Enabled() {
		t.Error("syncer with no host should be disabled")
	}

	s = NewSyncer(Config{Host: "instrument:21"})
	if !s.Enabled() {
		t.Error("syncer with host should be enabled")
	}
	if s.cfg.User != "anonymous" {
		t.Errorf("default user = %q, want anonymous", s.cfg.User)
	}
}
