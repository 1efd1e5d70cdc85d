package replication

import (
	"context"
	"errors"
	"testing"
	"time"

	clocktesting "k8s.io/utils/clock/testing"

	"github.com/yungbote/alohomora/internal/api"
	"github.com/yungbote/alohomora/internal/platform/logger"
	"github.com/yungbote/alohomora/internal/services"
)

var t0 = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

type page struct {
	bundle     *api.SyncBundle
	err        error
	checkpoint api.SyncCursor
}

// scriptedAuthority serves pages in order and records every request.
type scriptedAuthority struct {
	pages    []page
	requests []api.SyncRequest
}

func (a *scriptedAuthority) Sync(ctx context.Context, req api.SyncRequest) (*api.SyncBundle, error) {
	a.requests = append(a.requests, req)
	p := a.pages[len(a.requests)-1]
	if p.err != nil {
		return nil, p.err
	}
	p.bundle.ReplicaID = req.ReplicaID
	return p.bundle, nil
}

func (a *scriptedAuthority) Apply(ctx context.Context, b *api.SyncBundle) (*services.ApplyReport, error) {
	p := a.pages[len(a.requests)-1]
	return &services.ApplyReport{Tokens: len(b.SharedTokens), Checkpoint: p.checkpoint}, nil
}

type memStore struct {
	at    map[string]api.SyncCursor
	saves int
}

func newMemStore(seed map[string]api.SyncCursor) *memStore {
	if seed == nil {
		seed = map[string]api.SyncCursor{}
	}
	return &memStore{at: seed}
}

func (m *memStore) Load(ctx context.Context, id string) (api.SyncCursor, bool, error) {
	c, ok := m.at[id]
	return c, ok, nil
}

func (m *memStore) Save(ctx context.Context, id string, at api.SyncCursor) error {
	m.at[id] = at
	m.saves++
	return nil
}

func newTestSyncer(t *testing.T, auth *scriptedAuthority, store *memStore, maxPages int) *Syncer {
	t.Helper()
	s, err := NewSyncer(SyncerConfig{ReplicaID: "r1", GroupID: "g1", MaxPages: maxPages},
		auth, auth, store, NewLocalLocker(), clocktesting.NewFakeClock(t0), logger.Nop())
	if err != nil {
		t.Fatalf("new syncer: %v", err)
	}
	return s
}

// at is an exact cursor on a token created d after t0.
func at(d time.Duration, hash string) api.SyncCursor {
	return api.SyncCursor{At: t0.Add(d), TokenHash: hash}
}

func cursorPage(hasMore bool, checkpoint api.SyncCursor) page {
	return page{bundle: &api.SyncBundle{Mode: api.SyncModeCursor, HasMore: hasMore}, checkpoint: checkpoint}
}

func TestSyncerPullsPagesWhileCursorAdvances(t *testing.T) {
	auth := &scriptedAuthority{pages: []page{
		cursorPage(true, at(time.Minute, "aa")),
		cursorPage(true, at(2*time.Minute, "bb")),
		cursorPage(false, at(3*time.Minute, "cc")),
	}}
	store := newMemStore(map[string]api.SyncCursor{"r1": at(0, "00")})

	rep, err := newTestSyncer(t, auth, store, 0).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Pages != 3 {
		t.Fatalf("pages: want=3 got=%d", rep.Pages)
	}
	if want := at(3*time.Minute, "cc"); store.at["r1"] != want {
		t.Fatalf("checkpoint: want=%v got=%v", want, store.at["r1"])
	}
	second := auth.requests[1]
	if second.LastSync != t0.Add(time.Minute).Format(time.RFC3339Nano) || second.LastTokenHash != "aa" {
		t.Fatalf("second request cursor: got=(%q, %q)", second.LastSync, second.LastTokenHash)
	}
	if auth.requests[0].GroupID != "g1" || auth.requests[0].ReplicaID != "r1" || auth.requests[0].LastTokenHash != "00" {
		t.Fatalf("request scope: got=%+v", auth.requests[0])
	}
}

func TestSyncerFirstCycleSendsNoLastSync(t *testing.T) {
	auth := &scriptedAuthority{pages: []page{cursorPage(false, api.SyncCursor{At: t0})}}
	store := newMemStore(nil)

	if _, err := newTestSyncer(t, auth, store, 0).RunOnce(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if auth.requests[0].LastSync != "" || auth.requests[0].LastTokenHash != "" {
		t.Fatalf("cursor: want empty got=(%q, %q)", auth.requests[0].LastSync, auth.requests[0].LastTokenHash)
	}
	if !store.at["r1"].At.Equal(t0) {
		t.Fatalf("checkpoint: want=%v got=%v", t0, store.at["r1"])
	}
}

func TestSyncerStopsWhenCursorStalls(t *testing.T) {
	auth := &scriptedAuthority{pages: []page{
		cursorPage(true, at(0, "aa")),
		cursorPage(true, at(time.Minute, "bb")),
	}}
	store := newMemStore(map[string]api.SyncCursor{"r1": at(0, "aa")})

	rep, err := newTestSyncer(t, auth, store, 0).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Pages != 1 || store.saves != 0 {
		t.Fatalf("stalled cycle: want pages=1 saves=0 got pages=%d saves=%d", rep.Pages, store.saves)
	}
}

func TestSyncerNeverMovesCheckpointBackwards(t *testing.T) {
	auth := &scriptedAuthority{pages: []page{
		{bundle: &api.SyncBundle{Mode: api.SyncModeSnapshot}, checkpoint: api.SyncCursor{At: t0.Add(-time.Hour)}},
	}}
	store := newMemStore(map[string]api.SyncCursor{"r1": {At: t0}})

	if _, err := newTestSyncer(t, auth, store, 0).RunOnce(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !store.at["r1"].At.Equal(t0) {
		t.Fatalf("checkpoint: want=%v got=%v", t0, store.at["r1"])
	}
}

func TestSyncerFetchFailureKeepsCheckpoint(t *testing.T) {
	auth := &scriptedAuthority{pages: []page{
		cursorPage(true, at(time.Minute, "aa")),
		{err: errors.New("alohomora http 502: bad gateway")},
	}}
	store := newMemStore(map[string]api.SyncCursor{"r1": at(0, "00")})

	rep, err := newTestSyncer(t, auth, store, 0).RunOnce(context.Background())
	if err == nil {
		t.Fatalf("run: want error got nil")
	}
	if want := at(time.Minute, "aa"); store.at["r1"] != want || rep.Checkpoint != want {
		t.Fatalf("checkpoint: want=%v got=%v", want, store.at["r1"])
	}
}

func TestSyncerRespectsMaxPages(t *testing.T) {
	auth := &scriptedAuthority{pages: []page{
		cursorPage(true, at(time.Minute, "aa")),
		cursorPage(true, at(2*time.Minute, "bb")),
		cursorPage(true, at(3*time.Minute, "cc")),
	}}
	store := newMemStore(nil)

	rep, err := newTestSyncer(t, auth, store, 2).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Pages != 2 || len(auth.requests) != 2 {
		t.Fatalf("pages: want=2 got=%d (requests=%d)", rep.Pages, len(auth.requests))
	}
}

func TestSyncerSkipsWhenLocked(t *testing.T) {
	auth := &scriptedAuthority{pages: []page{cursorPage(false, api.SyncCursor{At: t0})}}
	store := newMemStore(nil)
	locker := NewLocalLocker()
	hold, _, _ := locker.TryLock(context.Background(), "r1")
	defer hold()

	s, err := NewSyncer(SyncerConfig{ReplicaID: "r1", GroupID: "g1"}, auth, auth, store, locker, clocktesting.NewFakeClock(t0), logger.Nop())
	if err != nil {
		t.Fatalf("new syncer: %v", err)
	}
	if _, err := s.RunOnce(context.Background()); !errors.Is(err, ErrCycleInProgress) {
		t.Fatalf("run: want=%v got=%v", ErrCycleInProgress, err)
	}
	if len(auth.requests) != 0 {
		t.Fatalf("requests: want=0 got=%d", len(auth.requests))
	}
}

func TestAdvances(t *testing.T) {
	bare := api.SyncCursor{At: t0}
	cases := []struct {
		name    string
		prev    api.SyncCursor
		hasPrev bool
		next    api.SyncCursor
		want    bool
	}{
		{"zero next", bare, true, api.SyncCursor{}, false},
		{"first checkpoint", api.SyncCursor{}, false, bare, true},
		{"later timestamp", bare, true, api.SyncCursor{At: t0.Add(time.Second)}, true},
		{"same timestamp", bare, true, bare, false},
		{"token inside overlap window", bare, true, at(-time.Second, "aa"), true},
		{"timestamp over token position", at(0, "aa"), true, api.SyncCursor{At: t0.Add(time.Hour)}, false},
		{"next hash at same time", at(0, "aa"), true, at(0, "ab"), true},
		{"earlier hash at same time", at(0, "ab"), true, at(0, "aa"), false},
		{"later token", at(0, "ff"), true, at(time.Millisecond, "00"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := advances(tc.prev, tc.hasPrev, tc.next); got != tc.want {
				t.Fatalf("advances: want=%v got=%v", tc.want, got)
			}
		})
	}
}
