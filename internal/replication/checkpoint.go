package replication

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/alohomora/internal/api"
)

// CheckpointStore keeps the last applied sync position per replica, outside
// the relational store.
type CheckpointStore interface {
	// Load reports ok=false when the replica has never synced.
	Load(ctx context.Context, replicaID string) (c api.SyncCursor, ok bool, err error)
	Save(ctx context.Context, replicaID string, c api.SyncCursor) error
}

type fileCheckpointStore struct {
	dir string
}

// NewFileCheckpointStore stores one file named .last_sync_<replica_id> per
// replica under dir.
func NewFileCheckpointStore(dir string) CheckpointStore {
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	return &fileCheckpointStore{dir: dir}
}

func (s *fileCheckpointStore) path(replicaID string) string {
	return filepath.Join(s.dir, ".last_sync_"+sanitizeID(replicaID))
}

func (s *fileCheckpointStore) Load(ctx context.Context, replicaID string) (api.SyncCursor, bool, error) {
	raw, err := os.ReadFile(s.path(replicaID))
	if errors.Is(err, os.ErrNotExist) {
		return api.SyncCursor{}, false, nil
	}
	if err != nil {
		return api.SyncCursor{}, false, err
	}
	return parseCheckpoint(string(raw))
}

func (s *fileCheckpointStore) Save(ctx context.Context, replicaID string, c api.SyncCursor) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, ".last_sync_*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(formatCheckpoint(c)); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path(replicaID))
}

const checkpointKeyPrefix = "alohomora:sync:checkpoint:"

type redisCheckpointStore struct {
	rdb goredis.UniversalClient
}

func NewRedisCheckpointStore(rdb goredis.UniversalClient) CheckpointStore {
	return &redisCheckpointStore{rdb: rdb}
}

func (s *redisCheckpointStore) Load(ctx context.Context, replicaID string) (api.SyncCursor, bool, error) {
	raw, err := s.rdb.Get(ctx, checkpointKeyPrefix+replicaID).Result()
	if errors.Is(err, goredis.Nil) {
		return api.SyncCursor{}, false, nil
	}
	if err != nil {
		return api.SyncCursor{}, false, fmt.Errorf("redis get checkpoint: %w", err)
	}
	return parseCheckpoint(raw)
}

func (s *redisCheckpointStore) Save(ctx context.Context, replicaID string, c api.SyncCursor) error {
	if err := s.rdb.Set(ctx, checkpointKeyPrefix+replicaID, formatCheckpoint(c), 0).Err(); err != nil {
		return fmt.Errorf("redis set checkpoint: %w", err)
	}
	return nil
}

// Checkpoints are "<RFC3339Nano>" or "<RFC3339Nano> <token_hash>".
func formatCheckpoint(c api.SyncCursor) string {
	out := c.At.UTC().Format(time.RFC3339Nano)
	if c.Exact() {
		out += " " + c.TokenHash
	}
	return out
}

func parseCheckpoint(raw string) (api.SyncCursor, bool, error) {
	fields := strings.Fields(raw)
	switch len(fields) {
	case 0:
		return api.SyncCursor{}, false, nil
	case 1, 2:
	default:
		return api.SyncCursor{}, false, fmt.Errorf("corrupt checkpoint %q", raw)
	}
	t, err := time.Parse(time.RFC3339Nano, fields[0])
	if err != nil {
		return api.SyncCursor{}, false, fmt.Errorf("corrupt checkpoint %q: %w", raw, err)
	}
	c := api.SyncCursor{At: t.UTC()}
	if len(fields) == 2 {
		c.TokenHash = fields[1]
	}
	return c, true, nil
}

// sanitizeID keeps replica ids usable as file name suffixes.
func sanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, id)
}
