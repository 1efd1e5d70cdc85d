package services

import (
	"context"
	"strings"
	"time"

	"k8s.io/utils/clock"

	"github.com/yungbote/alohomora/internal/api"
	"github.com/yungbote/alohomora/internal/data/repos"
	types "github.com/yungbote/alohomora/internal/domain"
	"github.com/yungbote/alohomora/internal/platform/apierr"
	"github.com/yungbote/alohomora/internal/platform/dbctx"
	"github.com/yungbote/alohomora/internal/platform/logger"
)

const (
	DefaultSyncLimit   = 100
	DefaultSyncOverlap = 2 * time.Second
)

type SyncConfig struct {
	// Mode is api.SyncModeCursor (incremental, oldest first) or
	// api.SyncModeSnapshot (the Limit newest tokens, last_sync ignored).
	Mode    string
	Limit   int
	Overlap time.Duration
}

// SyncService assembles replica bundles on the authority, scoped to one group.
type SyncService interface {
	Build(ctx context.Context, req api.SyncRequest) (*api.SyncBundle, error)
}

type syncService struct {
	repos repos.Registry
	cfg   SyncConfig
	clock clock.PassiveClock
	log   *logger.Logger
}

func NewSyncService(r repos.Registry, cfg SyncConfig, clk clock.PassiveClock, baseLog *logger.Logger) SyncService {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultSyncLimit
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = 0
	}
	if cfg.Mode != api.SyncModeSnapshot {
		cfg.Mode = api.SyncModeCursor
	}
	return &syncService{repos: r, cfg: cfg, clock: clk, log: baseLog.With("service", "SyncService")}
}

func (s *syncService) Build(ctx context.Context, req api.SyncRequest) (*api.SyncBundle, error) {
	if err := requireFields("replica_id", req.ReplicaID, "group_id", req.GroupID); err != nil {
		return nil, err
	}
	cursor, err := requestCursor(req)
	if err != nil {
		return nil, err
	}

	dbc := dbctx.New(ctx)
	b := &api.SyncBundle{
		ReplicaID:     req.ReplicaID,
		GroupID:       req.GroupID,
		SyncTimestamp: s.clock.Now().UTC(),
		Mode:          s.cfg.Mode,
	}

	systems, err := s.repos.System.ListByGroup(dbc, req.GroupID)
	if err != nil {
		return nil, s.storageErr("list systems", err)
	}
	functions, err := s.repos.Function.ListByGroup(dbc, req.GroupID)
	if err != nil {
		return nil, s.storageErr("list functions", err)
	}
	workflows, err := s.repos.Workflow.ListByGroup(dbc, req.GroupID)
	if err != nil {
		return nil, s.storageErr("list workflows", err)
	}

	b.Systems = derefAll(systems)
	b.SystemFunctions = derefAll(functions)
	b.Workflows = derefAll(workflows)
	b.WorkflowEdges = make([]types.WorkflowEdge, 0)
	for _, w := range workflows {
		edges, err := w.Edges()
		if err != nil {
			s.log.Warn("Skipping edges of unreadable workflow graph", "workflow_id", w.ID, "error", err)
			continue
		}
		b.WorkflowEdges = append(b.WorkflowEdges, edges...)
	}

	var tokens []*types.SharedToken
	if s.cfg.Mode == api.SyncModeSnapshot {
		tokens, err = s.repos.Token.ListNewestByGroup(dbc, req.GroupID, s.cfg.Limit)
	} else {
		if cursor.Exact() {
			tokens, err = s.repos.Token.ListByGroupAfter(dbc, req.GroupID, cursor.At, cursor.TokenHash, s.cfg.Limit+1)
		} else {
			since := cursor.At
			if !since.IsZero() {
				since = since.Add(-s.cfg.Overlap)
			}
			tokens, err = s.repos.Token.ListByGroupSince(dbc, req.GroupID, since, s.cfg.Limit+1)
		}
		if err == nil && len(tokens) > s.cfg.Limit {
			tokens = tokens[:s.cfg.Limit]
			b.HasMore = true
		}
	}
	if err != nil {
		return nil, s.storageErr("list tokens", err)
	}
	b.SharedTokens = derefAll(tokens)

	s.log.Info("Sync bundle built",
		"replica_id", req.ReplicaID,
		"group_id", req.GroupID,
		"mode", b.Mode,
		"systems", len(b.Systems),
		"functions", len(b.SystemFunctions),
		"workflows", len(b.Workflows),
		"edges", len(b.WorkflowEdges),
		"tokens", len(b.SharedTokens),
		"has_more", b.HasMore,
	)
	return b, nil
}

// requestCursor reads last_sync and last_token_hash. A hash needs the
// timestamp it belongs to.
func requestCursor(req api.SyncRequest) (api.SyncCursor, error) {
	var c api.SyncCursor
	c.TokenHash = strings.TrimSpace(req.LastTokenHash)
	ls := strings.TrimSpace(req.LastSync)
	if ls == "" {
		if c.TokenHash != "" {
			return c, apierr.InvalidInput("last_token_hash requires last_sync")
		}
		return c, nil
	}
	t, err := ParseTimestamp(ls)
	if err != nil {
		return c, apierr.InvalidInput("invalid last_sync: %v", err)
	}
	c.At = t.UTC()
	return c, nil
}

func (s *syncService) storageErr(op string, err error) error {
	s.log.Error("Storage operation failed", "op", op, "error", err)
	return apierr.Unavailable(err)
}

func derefAll[T any](in []*T) []T {
	out := make([]T, 0, len(in))
	for _, p := range in {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}
