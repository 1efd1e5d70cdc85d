package tokens

import (
	"context"
	"testing"
	"time"

	"github.com/yungbote/alohomora/internal/data/db"
	"github.com/yungbote/alohomora/internal/data/repos/testutil"
	types "github.com/yungbote/alohomora/internal/domain"
	"github.com/yungbote/alohomora/internal/platform/dbctx"
)

func TestSharedTokenRepo(t *testing.T) {
	gdb := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewSharedTokenRepo(gdb, testutil.Logger(t))

	testutil.SeedGroup(t, ctx, gdb, "g1")
	sys := testutil.SeedSystem(t, ctx, gdb, "A", "g1", "")
	f1 := testutil.SeedFunction(t, ctx, gdb, sys, "f1")
	w1 := testutil.SeedWorkflow(t, ctx, gdb, sys, []*types.Function{f1}, nil)

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	mk := func(raw string, created time.Time) *types.SharedToken {
		return &types.SharedToken{
			ID:         raw,
			SystemID:   sys.ID,
			WorkflowID: w1.ID,
			FunctionID: f1.ID,
			UserID:     "u1",
			TokenHash:  types.SharedTokenHash(raw),
			ExpiresAt:  created.Add(time.Hour),
			CreatedAt:  created,
		}
	}

	for i, raw := range []string{"t1", "t2", "t3"} {
		if err := repo.Create(dbc, mk(raw, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Create %s: %v", raw, err)
		}
	}

	dup := mk("t1-again", base)
	dup.TokenHash = types.SharedTokenHash("t1")
	if err := repo.Create(dbc, dup); !db.IsUniqueViolation(err) {
		t.Fatalf("duplicate hash: want unique violation got=%v", err)
	}

	if ok, err := repo.ExistsByHash(dbc, types.SharedTokenHash("t2")); err != nil || !ok {
		t.Fatalf("ExistsByHash: ok=%v err=%v", ok, err)
	}

	since, err := repo.ListByGroupSince(dbc, "g1", base.Add(time.Minute), 10)
	if err != nil || len(since) != 2 || since[0].ID != "t2" || since[1].ID != "t3" {
		t.Fatalf("ListByGroupSince: err=%v got=%v", err, ids(since))
	}

	newest, err := repo.ListNewestByGroup(dbc, "g1", 2)
	if err != nil || len(newest) != 2 || newest[0].ID != "t3" || newest[1].ID != "t2" {
		t.Fatalf("ListNewestByGroup: err=%v got=%v", err, ids(newest))
	}

	if other, _ := repo.ListNewestByGroup(dbc, "g2", 10); len(other) != 0 {
		t.Fatalf("other group: want 0 got=%d", len(other))
	}

	found, err := repo.FindForInquiry(dbc, InquiryFilter{
		TokenHash: types.SharedTokenHash("t1"),
		UserID:    "u1",
		SystemID:  sys.ID,
		Now:       base.Add(30 * time.Minute),
	})
	if err != nil || len(found) != 1 {
		t.Fatalf("FindForInquiry: err=%v len=%d", err, len(found))
	}

	expired, _ := repo.FindForInquiry(dbc, InquiryFilter{
		TokenHash: types.SharedTokenHash("t1"),
		UserID:    "u1",
		SystemID:  sys.ID,
		Now:       base.Add(2 * time.Hour),
	})
	if len(expired) != 0 {
		t.Fatalf("expired: want 0 got=%d", len(expired))
	}

	wrongSystem, _ := repo.FindForInquiry(dbc, InquiryFilter{
		TokenHash: types.SharedTokenHash("t1"),
		UserID:    "u1",
		SystemID:  "someone-else",
		Now:       base.Add(30 * time.Minute),
	})
	if len(wrongSystem) != 0 {
		t.Fatalf("wrong system: want 0 got=%d", len(wrongSystem))
	}

	stale, _ := repo.FindForInquiry(dbc, InquiryFilter{
		TokenHash:    types.SharedTokenHash("t1"),
		UserID:       "u1",
		SystemID:     sys.ID,
		Now:          base.Add(30 * time.Minute),
		CreatedAfter: base.Add(25 * time.Minute),
	})
	if len(stale) != 0 {
		t.Fatalf("stale: want 0 got=%d", len(stale))
	}

	up := mk("t1", base)
	up.UserID = "u1"
	up.Metadata = []byte(`{"k":"v"}`)
	if err := repo.Upsert(dbc, up); err != nil {
		t.Fatalf("Upsert existing: %v", err)
	}
	if err := repo.MarkVerified(dbc, []string{"t1"}, base.Add(time.Minute)); err != nil {
		t.Fatalf("MarkVerified: %v", err)
	}
}

func TestSharedTokenRepoListByGroupAfter(t *testing.T) {
	gdb := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewSharedTokenRepo(gdb, testutil.Logger(t))

	testutil.SeedGroup(t, ctx, gdb, "g1")
	sys := testutil.SeedSystem(t, ctx, gdb, "A", "g1", "")
	f1 := testutil.SeedFunction(t, ctx, gdb, sys, "f1")
	w1 := testutil.SeedWorkflow(t, ctx, gdb, sys, []*types.Function{f1}, nil)

	// Four tokens share one timestamp; only the hash separates them.
	at := time.Date(2026, 1, 1, 12, 0, 0, 500, time.UTC)
	for _, raw := range []string{"a", "b", "c", "d"} {
		tok := &types.SharedToken{
			ID: raw, SystemID: sys.ID, WorkflowID: w1.ID, FunctionID: f1.ID, UserID: "u1",
			TokenHash: types.SharedTokenHash(raw), ExpiresAt: at.Add(time.Hour), CreatedAt: at,
		}
		if err := repo.Create(dbc, tok); err != nil {
			t.Fatalf("Create %s: %v", raw, err)
		}
	}
	later := &types.SharedToken{
		ID: "e", SystemID: sys.ID, WorkflowID: w1.ID, FunctionID: f1.ID, UserID: "u1",
		TokenHash: types.SharedTokenHash("e"), ExpiresAt: at.Add(time.Hour), CreatedAt: at.Add(time.Second),
	}
	if err := repo.Create(dbc, later); err != nil {
		t.Fatalf("Create e: %v", err)
	}

	all, err := repo.ListByGroupSince(dbc, "g1", time.Time{}, 10)
	if err != nil || len(all) != 5 || all[4].ID != "e" {
		t.Fatalf("ListByGroupSince: err=%v got=%v", err, ids(all))
	}

	var walked []string
	cursorAt, cursorHash := time.Time{}, ""
	for page := 0; page < 10; page++ {
		rows, err := repo.ListByGroupAfter(dbc, "g1", cursorAt, cursorHash, 2)
		if err != nil {
			t.Fatalf("ListByGroupAfter page %d: %v", page, err)
		}
		if len(rows) == 0 {
			break
		}
		walked = append(walked, ids(rows)...)
		last := rows[len(rows)-1]
		cursorAt, cursorHash = last.CreatedAt, last.TokenHash
	}
	if len(walked) != 5 {
		t.Fatalf("walked: want=5 got=%v", walked)
	}
	for i := range all {
		if walked[i] != all[i].ID {
			t.Fatalf("walk order: want=%v got=%v", ids(all), walked)
		}
	}

	if other, _ := repo.ListByGroupAfter(dbc, "g2", time.Time{}, "", 10); len(other) != 0 {
		t.Fatalf("other group: want 0 got=%d", len(other))
	}
}

func ids(rows []*types.SharedToken) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out
}
