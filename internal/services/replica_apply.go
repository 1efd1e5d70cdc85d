package services

import (
	"context"
	"errors"
	"time"

	"k8s.io/utils/clock"

	"github.com/yungbote/alohomora/internal/api"
	"github.com/yungbote/alohomora/internal/data/repos"
	types "github.com/yungbote/alohomora/internal/domain"
	"github.com/yungbote/alohomora/internal/platform/dbctx"
	"github.com/yungbote/alohomora/internal/platform/logger"
)

// ApplyReport summarizes one bundle apply. Checkpoint is zero when the bundle
// gives no reason to move the replica's cursor.
type ApplyReport struct {
	Systems    int
	Functions  int
	Workflows  int
	Edges      int
	Tokens     int
	Failed     int
	Checkpoint api.SyncCursor
}

// ReplicaApplyService upserts a bundle in dependency order. Item failures are
// logged and skipped; the remaining items are still applied.
type ReplicaApplyService interface {
	Apply(ctx context.Context, b *api.SyncBundle) (*ApplyReport, error)
}

type replicaApplyService struct {
	repos repos.Registry
	clock clock.PassiveClock
	log   *logger.Logger
}

func NewReplicaApplyService(r repos.Registry, clk clock.PassiveClock, baseLog *logger.Logger) ReplicaApplyService {
	return &replicaApplyService{repos: r, clock: clk, log: baseLog.With("service", "ReplicaApplyService")}
}

func (s *replicaApplyService) Apply(ctx context.Context, b *api.SyncBundle) (*ApplyReport, error) {
	dbc := dbctx.New(ctx)
	rep := &ApplyReport{}
	log := s.log.With("group_id", b.GroupID, "replica_id", b.ReplicaID)

	systems := map[string]bool{}
	for i := range b.Systems {
		sys := b.Systems[i]
		if sys.Group() != b.GroupID {
			rep.Failed++
			log.Warn("Skipping system outside bundle group", "system_id", sys.ID)
			continue
		}
		if err := s.repos.System.Upsert(dbc, &sys); err != nil {
			rep.Failed++
			log.Warn("Failed to apply system", "system_id", sys.ID, "error", err)
			continue
		}
		systems[sys.ID] = true
		rep.Systems++
	}

	functions := map[string]bool{}
	for i := range b.SystemFunctions {
		fn := b.SystemFunctions[i]
		if ok, err := s.known(dbc, systems, fn.SystemID, s.systemExists); !ok {
			rep.Failed++
			log.Warn("Skipping function without system", "function_id", fn.ID, "system_id", fn.SystemID, "error", err)
			continue
		}
		if err := s.repos.Function.Upsert(dbc, &fn); err != nil {
			rep.Failed++
			log.Warn("Failed to apply function", "function_id", fn.ID, "error", err)
			continue
		}
		functions[fn.ID] = true
		rep.Functions++
	}

	workflows := map[string]*types.Workflow{}
	for i := range b.Workflows {
		wf := b.Workflows[i]
		if ok, err := s.known(dbc, systems, wf.SystemID, s.systemExists); !ok {
			rep.Failed++
			log.Warn("Skipping workflow without system", "workflow_id", wf.ID, "system_id", wf.SystemID, "error", err)
			continue
		}
		if _, err := wf.Graph(); err != nil {
			rep.Failed++
			log.Warn("Skipping workflow with unreadable graph", "workflow_id", wf.ID, "error", err)
			continue
		}
		if err := s.repos.Workflow.Upsert(dbc, &wf); err != nil {
			rep.Failed++
			log.Warn("Failed to apply workflow", "workflow_id", wf.ID, "error", err)
			continue
		}
		workflows[wf.ID] = &wf
		rep.Workflows++
	}

	// Edges are a derived view; applying one means checking it against the
	// workflow graph the replica now holds.
	derived := map[string]map[string]bool{}
	for _, e := range b.WorkflowEdges {
		ids, ok := derived[e.WorkflowID]
		if !ok {
			ids = s.edgeIDs(dbc, workflows, e.WorkflowID)
			derived[e.WorkflowID] = ids
		}
		if !ids[e.ID] {
			rep.Failed++
			log.Warn("Edge does not match workflow graph", "edge_id", e.ID, "workflow_id", e.WorkflowID)
			continue
		}
		rep.Edges++
	}

	var (
		maxCreated time.Time
		// cursor stops at the first token that failed for a reason a retry
		// can fix. Tokens rejected on their content are stepped over.
		cursor  api.SyncCursor
		blocked bool
	)
	for i := range b.SharedTokens {
		tok := b.SharedTokens[i]
		err := s.applyToken(dbc, workflows, functions, &tok)
		switch {
		case err == nil:
			rep.Tokens++
			if tok.CreatedAt.After(maxCreated) {
				maxCreated = tok.CreatedAt
			}
		case isRejected(err):
			rep.Failed++
			log.Warn("Skipping rejected token", "workflow_id", tok.WorkflowID, "token_hash", tok.TokenHash, "error", err)
		default:
			rep.Failed++
			log.Warn("Failed to apply token", "workflow_id", tok.WorkflowID, "token_hash", tok.TokenHash, "holds_cursor", !blocked, "error", err)
			blocked = true
		}
		if !blocked {
			cursor = api.SyncCursor{At: tok.CreatedAt.UTC(), TokenHash: tok.TokenHash}
		}
	}

	switch {
	case b.Mode == api.SyncModeSnapshot:
		rep.Checkpoint = api.SyncCursor{At: maxCreated.UTC()}
		if len(b.SharedTokens) == 0 {
			rep.Checkpoint = api.SyncCursor{At: s.fallbackNow(b)}
		}
	case len(b.SharedTokens) == 0:
		rep.Checkpoint = api.SyncCursor{At: s.fallbackNow(b)}
	default:
		rep.Checkpoint = cursor
	}

	log.Info("Sync bundle applied",
		"systems", rep.Systems,
		"functions", rep.Functions,
		"workflows", rep.Workflows,
		"edges", rep.Edges,
		"tokens", rep.Tokens,
		"failed", rep.Failed,
	)
	return rep, nil
}

func (s *replicaApplyService) applyToken(dbc dbctx.Context, workflows map[string]*types.Workflow, functions map[string]bool, tok *types.SharedToken) error {
	if tok.TokenHash != types.SharedTokenHash(tok.ID) {
		return errTokenHashMismatch
	}
	if _, ok := workflows[tok.WorkflowID]; !ok {
		w, err := s.repos.Workflow.GetByID(dbc, tok.WorkflowID)
		if err != nil {
			return err
		}
		if w == nil {
			return errMissingWorkflow
		}
	}
	if ok, err := s.known(dbc, functions, tok.FunctionID, s.functionExists); !ok {
		if err != nil {
			return err
		}
		return errMissingFunction
	}
	return s.repos.Token.Upsert(dbc, tok)
}

// isRejected reports failures caused by the token row itself. Applying the
// same row again cannot succeed.
func isRejected(err error) bool {
	return errors.Is(err, errTokenHashMismatch) ||
		errors.Is(err, errMissingWorkflow) ||
		errors.Is(err, errMissingFunction)
}

func (s *replicaApplyService) edgeIDs(dbc dbctx.Context, applied map[string]*types.Workflow, workflowID string) map[string]bool {
	out := map[string]bool{}
	w := applied[workflowID]
	if w == nil {
		stored, err := s.repos.Workflow.GetByID(dbc, workflowID)
		if err != nil || stored == nil {
			return out
		}
		w = stored
	}
	edges, err := w.Edges()
	if err != nil {
		return out
	}
	for _, e := range edges {
		out[e.ID] = true
	}
	return out
}

func (s *replicaApplyService) known(dbc dbctx.Context, seen map[string]bool, id string, lookup func(dbctx.Context, string) (bool, error)) (bool, error) {
	if seen[id] {
		return true, nil
	}
	ok, err := lookup(dbc, id)
	if ok {
		seen[id] = true
	}
	return ok, err
}

func (s *replicaApplyService) systemExists(dbc dbctx.Context, id string) (bool, error) {
	sys, err := s.repos.System.GetByID(dbc, id)
	return sys != nil, err
}

func (s *replicaApplyService) functionExists(dbc dbctx.Context, id string) (bool, error) {
	fn, err := s.repos.Function.GetByID(dbc, id)
	return fn != nil, err
}

func (s *replicaApplyService) fallbackNow(b *api.SyncBundle) time.Time {
	if !b.SyncTimestamp.IsZero() {
		return b.SyncTimestamp.UTC()
	}
	return s.clock.Now().UTC()
}
