package replication

import (
	"context"
	"fmt"
	"testing"
	"time"

	clocktesting "k8s.io/utils/clock/testing"

	"github.com/yungbote/alohomora/internal/api"
	"github.com/yungbote/alohomora/internal/data/repos"
	"github.com/yungbote/alohomora/internal/data/repos/testutil"
	types "github.com/yungbote/alohomora/internal/domain"
	"github.com/yungbote/alohomora/internal/platform/dbctx"
	"github.com/yungbote/alohomora/internal/services"
)

// localAuthority serves bundles straight from an in-process SyncService.
type localAuthority struct {
	svc services.SyncService
}

func (a localAuthority) Sync(ctx context.Context, req api.SyncRequest) (*api.SyncBundle, error) {
	return a.svc.Build(ctx, req)
}

type syncFlow struct {
	ctx       context.Context
	authority repos.Registry
	replica   repos.Registry
	syncer    *Syncer
	store     *memStore
	sys       *types.System
	fn        *types.Function
	wf        *types.Workflow
}

func newSyncFlow(t *testing.T, cfg services.SyncConfig, maxPages int) *syncFlow {
	t.Helper()
	ctx := context.Background()
	log := testutil.Logger(t)
	clk := clocktesting.NewFakeClock(t0.Add(time.Second))

	authorityDB := testutil.DB(t)
	testutil.SeedGroup(t, ctx, authorityDB, "g1")
	f := &syncFlow{ctx: ctx, store: newMemStore(nil)}
	f.sys = testutil.SeedSystem(t, ctx, authorityDB, "A", "g1", "")
	f.fn = testutil.SeedFunction(t, ctx, authorityDB, f.sys, "f1")
	f.wf = testutil.SeedWorkflow(t, ctx, authorityDB, f.sys, []*types.Function{f.fn}, nil)
	f.authority = repos.NewRegistry(authorityDB, log)
	f.replica = repos.NewRegistry(testutil.DB(t), log)

	source := localAuthority{svc: services.NewSyncService(f.authority, cfg, clk, log)}
	apply := services.NewReplicaApplyService(f.replica, clk, log)
	s, err := NewSyncer(SyncerConfig{ReplicaID: "r1", GroupID: "g1", MaxPages: maxPages},
		source, apply, f.store, NewLocalLocker(), clk, log)
	if err != nil {
		t.Fatalf("new syncer: %v", err)
	}
	f.syncer = s
	return f
}

// record stores a token on the authority. A non-empty hash overrides the
// hash of raw.
func (f *syncFlow) record(t *testing.T, raw, hash string, created time.Time) {
	t.Helper()
	if hash == "" {
		hash = types.SharedTokenHash(raw)
	}
	tok := &types.SharedToken{
		ID:         raw,
		SystemID:   f.sys.ID,
		WorkflowID: f.wf.ID,
		FunctionID: f.fn.ID,
		UserID:     "u1",
		TokenHash:  hash,
		ExpiresAt:  created.Add(time.Hour),
		CreatedAt:  created,
	}
	if err := f.authority.Token.Create(dbctx.New(f.ctx), tok); err != nil {
		t.Fatalf("record %s: %v", raw, err)
	}
}

func (f *syncFlow) replicaTokens(t *testing.T) int {
	t.Helper()
	rows, err := f.replica.Token.ListByGroupSince(dbctx.New(f.ctx), "g1", time.Time{}, 1000)
	if err != nil {
		t.Fatalf("list replica tokens: %v", err)
	}
	return len(rows)
}

func TestSyncerCatchesUpWhenOverlapHoldsMoreThanOnePage(t *testing.T) {
	f := newSyncFlow(t, services.SyncConfig{Limit: 2, Overlap: 2 * time.Second}, 1)
	for i := 0; i < 5; i++ {
		f.record(t, fmt.Sprintf("tok-%d", i), "", t0.Add(time.Duration(i)*100*time.Millisecond))
	}

	// One page per cycle, so only the stored checkpoint carries progress.
	for cycle := 0; cycle < 5; cycle++ {
		if _, err := f.syncer.RunOnce(f.ctx); err != nil {
			t.Fatalf("cycle %d: %v", cycle, err)
		}
	}
	if got := f.replicaTokens(t); got != 5 {
		t.Fatalf("replica tokens: want=5 got=%d", got)
	}
	cp := f.store.at["r1"]
	if !cp.Exact() || !cp.At.Equal(t0.Add(400*time.Millisecond)) {
		t.Fatalf("checkpoint: want exact at %v got=%v", t0.Add(400*time.Millisecond), cp)
	}

	f.record(t, "tok-late", "", t0.Add(time.Second))
	rep, err := f.syncer.RunOnce(f.ctx)
	if err != nil {
		t.Fatalf("cycle after catch up: %v", err)
	}
	if rep.Tokens != 1 || f.replicaTokens(t) != 6 {
		t.Fatalf("new token: want cycle tokens=1 replica=6 got=%d/%d", rep.Tokens, f.replicaTokens(t))
	}
}

func TestSyncerPagesWithinOneCycle(t *testing.T) {
	f := newSyncFlow(t, services.SyncConfig{Limit: 2, Overlap: 2 * time.Second}, 0)
	for i := 0; i < 5; i++ {
		f.record(t, fmt.Sprintf("tok-%d", i), "", t0)
	}

	rep, err := f.syncer.RunOnce(f.ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Pages != 3 || rep.Tokens != 5 || f.replicaTokens(t) != 5 {
		t.Fatalf("cycle: want pages=3 tokens=5 got=%+v replica=%d", *rep, f.replicaTokens(t))
	}
}

func TestSyncerStepsOverRejectedToken(t *testing.T) {
	f := newSyncFlow(t, services.SyncConfig{Limit: 2, Overlap: 2 * time.Second}, 1)
	f.record(t, "tok-0", "", t0)
	f.record(t, "tok-forged", types.SharedTokenHash("something-else"), t0.Add(100*time.Millisecond))
	f.record(t, "tok-2", "", t0.Add(200*time.Millisecond))
	f.record(t, "tok-3", "", t0.Add(300*time.Millisecond))

	var failed int
	for cycle := 0; cycle < 3; cycle++ {
		rep, err := f.syncer.RunOnce(f.ctx)
		if err != nil {
			t.Fatalf("cycle %d: %v", cycle, err)
		}
		failed += rep.Failed
	}
	if got := f.replicaTokens(t); got != 3 {
		t.Fatalf("replica tokens: want=3 got=%d", got)
	}
	if failed != 1 {
		t.Fatalf("failed: want=1 got=%d", failed)
	}
	if cp := f.store.at["r1"]; cp.TokenHash != types.SharedTokenHash("tok-3") {
		t.Fatalf("checkpoint: want last token got=%v", cp)
	}
}
