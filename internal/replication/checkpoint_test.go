package replication

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yungbote/alohomora/internal/api"
)

func TestFileCheckpointStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewFileCheckpointStore(dir)

	_, ok, err := store.Load(ctx, "replica-1")
	if err != nil || ok {
		t.Fatalf("load empty: want=(false, nil) got=(%v, %v)", ok, err)
	}

	at := api.SyncCursor{At: time.Date(2026, 5, 1, 10, 0, 0, 123456789, time.UTC), TokenHash: "9f86d081"}
	if err := store.Save(ctx, "replica-1", at); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := store.Load(ctx, "replica-1")
	if err != nil || !ok {
		t.Fatalf("load: want=(true, nil) got=(%v, %v)", ok, err)
	}
	if !got.At.Equal(at.At) || got.TokenHash != at.TokenHash {
		t.Fatalf("checkpoint: want=%v got=%v", at, got)
	}
	if _, err := os.Stat(filepath.Join(dir, ".last_sync_replica-1")); err != nil {
		t.Fatalf("checkpoint file: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("files: want=1 got=%d", len(entries))
	}
}

func TestFileCheckpointStoreReadsTimestampOnlyFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".last_sync_r"), []byte("2026-05-01T10:00:00Z\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, ok, err := NewFileCheckpointStore(dir).Load(context.Background(), "r")
	if err != nil || !ok {
		t.Fatalf("load: want=(true, nil) got=(%v, %v)", ok, err)
	}
	if want := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC); !got.At.Equal(want) || got.Exact() {
		t.Fatalf("checkpoint: want=%v without hash got=%v", want, got)
	}
}

func TestFileCheckpointStoreRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	for _, body := range []string{"yesterday", "2026-05-01T10:00:00Z abc def"} {
		if err := os.WriteFile(filepath.Join(dir, ".last_sync_r"), []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, _, err := NewFileCheckpointStore(dir).Load(context.Background(), "r"); err == nil {
			t.Fatalf("load %q: want error got nil", body)
		}
	}
}

func TestSanitizeID(t *testing.T) {
	if got := sanitizeID("../etc/passwd"); got != ".._etc_passwd" {
		t.Fatalf("sanitize: want=%q got=%q", ".._etc_passwd", got)
	}
}
