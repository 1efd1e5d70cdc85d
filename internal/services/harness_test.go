package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/yungbote/alohomora/internal/data/db"
	"github.com/yungbote/alohomora/internal/data/repos"
	"github.com/yungbote/alohomora/internal/data/repos/testutil"
	types "github.com/yungbote/alohomora/internal/domain"
	"github.com/yungbote/alohomora/internal/notify"
	"github.com/yungbote/alohomora/internal/platform/apierr"
)

var epoch = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

type harness struct {
	ctx      context.Context
	db       *gorm.DB
	clock    *clocktesting.FakeClock
	repos    repos.Registry
	graph    GraphService
	tokens   TokenService
	inquiry  InquiryService
	instance InstanceService
	events   *recordedEvents
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gdb := testutil.DB(t)
	log := testutil.Logger(t)
	clk := clocktesting.NewFakeClock(epoch)
	r := repos.NewRegistry(gdb, log)
	graph := NewGraphService(r, clk, log)
	ev := &recordedEvents{}
	return &harness{
		ctx:      context.Background(),
		db:       gdb,
		clock:    clk,
		repos:    r,
		graph:    graph,
		tokens:   NewTokenService(r, graph, ev, 0, clk, log),
		inquiry:  NewInquiryService(r.Token, 5*time.Minute, clk, log),
		instance: NewInstanceService(r, graph, db.NewGormTxRunner(gdb), clk, log),
		events:   ev,
	}
}

type recordedEvents struct {
	mu  sync.Mutex
	got []notify.TokenRecorded
}

func (r *recordedEvents) Submit(ev notify.TokenRecorded) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, ev)
	return true
}

func (r *recordedEvents) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

// world is one group with a single system owning a linear a -> b workflow and
// an isolated vertex c.
type world struct {
	group    *types.Group
	system   *types.System
	a, b, c  *types.Function
	workflow *types.Workflow
}

func seedWorld(t *testing.T, h *harness, groupID string) *world {
	t.Helper()
	w := &world{group: testutil.SeedGroup(t, h.ctx, h.db, groupID)}
	w.system = testutil.SeedSystem(t, h.ctx, h.db, "sys-"+groupID, groupID, "")
	w.a = testutil.SeedFunction(t, h.ctx, h.db, w.system, "a")
	w.b = testutil.SeedFunction(t, h.ctx, h.db, w.system, "b")
	w.c = testutil.SeedFunction(t, h.ctx, h.db, w.system, "c")
	w.workflow = testutil.SeedWorkflow(t, h.ctx, h.db, w.system,
		[]*types.Function{w.a, w.b, w.c},
		map[string][]string{w.a.ID: {w.b.ID}},
	)
	return w
}

func (h *harness) record(w *world, token string, meta string) (*RecordTokenResult, error) {
	in := RecordTokenInput{
		SystemID:   w.system.ID,
		Token:      token,
		WorkflowID: w.workflow.ID,
		FunctionID: w.a.ID,
		UserID:     "user-1",
	}
	if meta != "" {
		in.Metadata = []byte(meta)
	}
	return h.tokens.Record(h.ctx, in)
}

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	var ae *apierr.Error
	if !errors.As(err, &ae) {
		t.Fatalf("error: want apierr code=%s got=%v", code, err)
	}
	if ae.Code != code {
		t.Fatalf("error code: want=%s got=%s (%v)", code, ae.Code, ae.Err)
	}
}
