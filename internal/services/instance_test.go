package services

import (
	"testing"
	"time"

	"github.com/yungbote/alohomora/internal/data/repos/testutil"
	types "github.com/yungbote/alohomora/internal/domain"
	"github.com/yungbote/alohomora/internal/platform/apierr"
	"github.com/yungbote/alohomora/internal/platform/dbctx"
)

func TestMarkStepKeepsOneRowPerTriple(t *testing.T) {
	h := newHarness(t)
	w := seedWorld(t, h, "g1")

	inst, err := h.instance.Create(h.ctx, CreateInstanceInput{WorkflowID: w.workflow.ID, UserID: "user-1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if inst.Status != types.InstanceStatusInProgress {
		t.Fatalf("status: want=%s got=%s", types.InstanceStatusInProgress, inst.Status)
	}

	first, err := h.instance.MarkStep(h.ctx, MarkStepInput{
		InstanceID: inst.ID, FunctionID: w.a.ID, SystemID: w.system.ID, ResultData: []byte(`{"ok":true}`),
	})
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if first.Status != types.StepStatusCompleted {
		t.Fatalf("first status: want=%s got=%s", types.StepStatusCompleted, first.Status)
	}

	h.clock.Step(time.Minute)
	second, err := h.instance.MarkStep(h.ctx, MarkStepInput{
		InstanceID: inst.ID, FunctionID: w.a.ID, SystemID: w.system.ID, ErrorMessage: "boom",
	})
	if err != nil {
		t.Fatalf("re-mark: %v", err)
	}
	if second.Status != types.StepStatusFailed {
		t.Fatalf("second status: want=%s got=%s", types.StepStatusFailed, second.Status)
	}
	if second.ID != first.ID {
		t.Fatalf("step id: want=%s got=%s", first.ID, second.ID)
	}

	dbc := dbctx.New(h.ctx)
	steps, err := h.repos.Step.ListByInstance(dbc, inst.ID)
	if err != nil {
		t.Fatalf("list steps: %v", err)
	}
	if len(steps) != 1 {
		t.Fatalf("steps: want=1 got=%d", len(steps))
	}
	if steps[0].ErrorMessage == nil || *steps[0].ErrorMessage != "boom" {
		t.Fatalf("error_message: want=boom got=%v", steps[0].ErrorMessage)
	}

	stored, err := h.repos.Instance.GetByID(dbc, inst.ID)
	if err != nil {
		t.Fatalf("get instance: %v", err)
	}
	if want := epoch.Add(time.Minute); !stored.UpdatedAt.Equal(want) {
		t.Fatalf("updated_at: want=%v got=%v", want, stored.UpdatedAt)
	}
	if stored.Status != types.InstanceStatusInProgress {
		t.Fatalf("instance status rolled up: want=%s got=%s", types.InstanceStatusInProgress, stored.Status)
	}
}

func TestMarkStepValidation(t *testing.T) {
	h := newHarness(t)
	w := seedWorld(t, h, "g1")
	intruder := testutil.SeedSystem(t, h.ctx, h.db, "intruder", "g1", "")
	stray := testutil.SeedFunction(t, h.ctx, h.db, w.system, "stray")

	inst, err := h.instance.Create(h.ctx, CreateInstanceInput{WorkflowID: w.workflow.ID, UserID: "user-1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = h.instance.MarkStep(h.ctx, MarkStepInput{InstanceID: "missing", FunctionID: w.a.ID, SystemID: w.system.ID})
	wantCode(t, err, apierr.CodeNotFound)

	_, err = h.instance.MarkStep(h.ctx, MarkStepInput{InstanceID: inst.ID, FunctionID: w.a.ID, SystemID: intruder.ID})
	wantCode(t, err, apierr.CodeForbidden)

	_, err = h.instance.MarkStep(h.ctx, MarkStepInput{InstanceID: inst.ID, FunctionID: stray.ID, SystemID: w.system.ID})
	wantCode(t, err, apierr.CodeInvalidInput)
}

func TestCreateInstanceRequiresKnownWorkflow(t *testing.T) {
	h := newHarness(t)
	_, err := h.instance.Create(h.ctx, CreateInstanceInput{WorkflowID: "missing", UserID: "u"})
	wantCode(t, err, apierr.CodeNotFound)

	_, err = h.instance.Create(h.ctx, CreateInstanceInput{WorkflowID: "w"})
	wantCode(t, err, apierr.CodeInvalidInput)
}

func TestInstanceStatusCounts(t *testing.T) {
	h := newHarness(t)
	w := seedWorld(t, h, "g1")
	for i := 0; i < 3; i++ {
		if _, err := h.instance.Create(h.ctx, CreateInstanceInput{WorkflowID: w.workflow.ID, UserID: "u"}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	done := &types.WorkflowInstance{
		ID: "done", WorkflowID: w.workflow.ID, UserID: "u", Status: types.InstanceStatusCompleted,
		CreatedAt: epoch, UpdatedAt: epoch,
	}
	if err := h.repos.Instance.Create(dbctx.New(h.ctx), done); err != nil {
		t.Fatalf("seed completed: %v", err)
	}

	got, err := h.instance.Status(h.ctx, w.workflow.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	want := types.StatusCounts{Total: 4, Completed: 1, InProgress: 3}
	if *got != want {
		t.Fatalf("counts: want=%+v got=%+v", want, *got)
	}
}
