package replication

import (
	"context"
	"fmt"
	"strings"
	"time"

	"k8s.io/utils/clock"

	"github.com/yungbote/alohomora/internal/api"
	"github.com/yungbote/alohomora/internal/platform/logger"
	"github.com/yungbote/alohomora/internal/services"
)

const DefaultMaxPages = 10

// BundleSource fetches one sync page from the authority.
type BundleSource interface {
	Sync(ctx context.Context, req api.SyncRequest) (*api.SyncBundle, error)
}

// BundleApplier writes one bundle into the replica's store.
type BundleApplier interface {
	Apply(ctx context.Context, b *api.SyncBundle) (*services.ApplyReport, error)
}

type SyncerConfig struct {
	ReplicaID string
	GroupID   string
	MaxPages  int
}

// CycleReport sums the pages pulled by one cycle.
type CycleReport struct {
	Pages      int
	Tokens     int
	Failed     int
	Checkpoint api.SyncCursor
	Advanced   bool
}

type Syncer struct {
	cfg    SyncerConfig
	source BundleSource
	apply  BundleApplier
	store  CheckpointStore
	locker Locker
	clock  clock.PassiveClock
	log    *logger.Logger
}

func NewSyncer(cfg SyncerConfig, source BundleSource, apply BundleApplier, store CheckpointStore, locker Locker, clk clock.PassiveClock, baseLog *logger.Logger) (*Syncer, error) {
	cfg.ReplicaID = strings.TrimSpace(cfg.ReplicaID)
	cfg.GroupID = strings.TrimSpace(cfg.GroupID)
	if cfg.ReplicaID == "" || cfg.GroupID == "" {
		return nil, fmt.Errorf("replica id and group id required")
	}
	if source == nil || apply == nil || store == nil {
		return nil, fmt.Errorf("syncer: missing dependency")
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Syncer{
		cfg:    cfg,
		source: source,
		apply:  apply,
		store:  store,
		locker: locker,
		clock:  clk,
		log:    baseLog.With("service", "ReplicaSyncer", "replica_id", cfg.ReplicaID, "group_id", cfg.GroupID),
	}, nil
}

// RunOnce pulls and applies bundles until the authority reports no more
// pages, the cursor stops moving, or MaxPages is reached. The checkpoint only
// moves forward and is left untouched when a fetch fails.
func (s *Syncer) RunOnce(ctx context.Context) (*CycleReport, error) {
	release, ok, err := s.locker.TryLock(ctx, s.cfg.ReplicaID)
	if err != nil {
		return nil, fmt.Errorf("acquire sync lock: %w", err)
	}
	if !ok {
		return nil, ErrCycleInProgress
	}
	defer release()

	last, has, err := s.store.Load(ctx, s.cfg.ReplicaID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	rep := &CycleReport{Checkpoint: last}
	started := s.clock.Now()
	for rep.Pages < s.cfg.MaxPages {
		req := api.SyncRequest{ReplicaID: s.cfg.ReplicaID, GroupID: s.cfg.GroupID}
		if has {
			req.LastSync = last.At.UTC().Format(time.RFC3339Nano)
			req.LastTokenHash = last.TokenHash
		}
		bundle, err := s.source.Sync(ctx, req)
		if err != nil {
			s.log.Warn("Sync fetch failed", "page", rep.Pages, "error", err)
			return rep, fmt.Errorf("fetch sync bundle: %w", err)
		}
		applied, err := s.apply.Apply(ctx, bundle)
		if err != nil {
			return rep, fmt.Errorf("apply sync bundle: %w", err)
		}
		rep.Pages++
		rep.Tokens += applied.Tokens
		rep.Failed += applied.Failed

		advanced := advances(last, has, applied.Checkpoint)
		if advanced {
			if err := s.store.Save(ctx, s.cfg.ReplicaID, applied.Checkpoint); err != nil {
				return rep, fmt.Errorf("save checkpoint: %w", err)
			}
			last, has = applied.Checkpoint, true
			rep.Checkpoint = last
			rep.Advanced = true
		}

		if bundle.Mode != api.SyncModeCursor || !bundle.HasMore {
			break
		}
		if !advanced {
			s.log.Warn("Sync cursor did not advance, stopping cycle", "checkpoint", last.At, "token_hash", last.TokenHash)
			break
		}
	}

	s.log.Info("Sync cycle finished",
		"pages", rep.Pages,
		"tokens", rep.Tokens,
		"failed", rep.Failed,
		"checkpoint", rep.Checkpoint.At,
		"duration", s.clock.Since(started),
	)
	return rep, nil
}

// advances reports whether next should replace the stored checkpoint. A token
// position replaces a bare timestamp even when it sorts earlier, since it came
// from the overlap window that timestamp asked for. A bare timestamp never
// replaces a token position.
func advances(prev api.SyncCursor, hasPrev bool, next api.SyncCursor) bool {
	switch {
	case next.IsZero():
		return false
	case !hasPrev:
		return true
	case !prev.Exact():
		return next.Exact() || next.At.After(prev.At)
	case !next.Exact():
		return false
	default:
		return next.After(prev)
	}
}
