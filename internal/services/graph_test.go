package services

import (
	"encoding/json"
	"testing"

	"github.com/yungbote/alohomora/internal/data/repos/testutil"
	types "github.com/yungbote/alohomora/internal/domain"
	"github.com/yungbote/alohomora/internal/platform/apierr"
)

func TestVerifyFunctionInWorkflow(t *testing.T) {
	h := newHarness(t)
	w := seedWorld(t, h, "g1")
	other := seedWorld(t, h, "g2")

	cases := []struct {
		name     string
		workflow string
		function string
		group    string
		want     bool
	}{
		{"edge source", w.workflow.ID, w.a.ID, "g1", true},
		{"edge target", w.workflow.ID, w.b.ID, "g1", true},
		{"isolated vertex", w.workflow.ID, w.c.ID, "g1", false},
		{"function of another group", w.workflow.ID, other.a.ID, "g1", false},
		{"workflow of another group", other.workflow.ID, w.a.ID, "g1", false},
		{"group mismatch", w.workflow.ID, w.a.ID, "g2", false},
		{"unknown workflow", "missing", w.a.ID, "g1", false},
	}
	for _, tc := range cases {
		got, err := h.graph.VerifyFunctionInWorkflow(h.ctx, tc.workflow, tc.function, tc.group)
		if err != nil {
			t.Fatalf("%s: verify: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: want=%v got=%v", tc.name, tc.want, got)
		}
	}
}

func TestVerifyAcceptsGroupFunctionWhenWorkflowHasNoEdges(t *testing.T) {
	h := newHarness(t)
	w := seedWorld(t, h, "g1")
	flat := testutil.SeedWorkflow(t, h.ctx, h.db, w.system, []*types.Function{w.a}, nil)

	got, err := h.graph.VerifyFunctionInWorkflow(h.ctx, flat.ID, w.c.ID, "g1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !got {
		t.Fatalf("verify edgeless workflow: want=true got=false")
	}
}

func TestRegisterSystemRejectsDuplicateName(t *testing.T) {
	h := newHarness(t)
	testutil.SeedGroup(t, h.ctx, h.db, "g1")

	first, err := h.graph.RegisterSystem(h.ctx, RegisterSystemInput{Name: "billing", PublicKey: "pk", GroupID: "g1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if first.Group() != "g1" {
		t.Fatalf("group: want=g1 got=%q", first.Group())
	}
	_, err = h.graph.RegisterSystem(h.ctx, RegisterSystemInput{Name: "billing", PublicKey: "pk2"})
	wantCode(t, err, apierr.CodeConflict)

	_, err = h.graph.RegisterSystem(h.ctx, RegisterSystemInput{Name: "orphan", PublicKey: "pk", GroupID: "nope"})
	wantCode(t, err, apierr.CodeNotFound)
}

func TestRegisterFunctionRequiresGroupedSystem(t *testing.T) {
	h := newHarness(t)
	loner := testutil.SeedSystem(t, h.ctx, h.db, "loner", "", "")

	_, err := h.graph.RegisterFunction(h.ctx, loner.ID, "f", "http://f")
	wantCode(t, err, apierr.CodeInvalidState)

	_, err = h.graph.RegisterFunction(h.ctx, "missing", "f", "http://f")
	wantCode(t, err, apierr.CodeNotFound)
}

func TestRegisterWorkflowChecksVertexMembership(t *testing.T) {
	h := newHarness(t)
	w := seedWorld(t, h, "g1")
	other := seedWorld(t, h, "g2")

	doc := func(ids ...string) json.RawMessage {
		g := types.Graph{Vertices: map[string]types.Vertex{}, Adj: map[string][]string{}}
		for _, id := range ids {
			g.Vertices[id] = types.Vertex{Name: id, SystemID: w.system.ID}
		}
		raw, err := g.Encode()
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		return json.RawMessage(raw)
	}

	_, err := h.graph.RegisterWorkflow(h.ctx, w.system.ID, doc(w.a.ID, other.a.ID))
	wantCode(t, err, apierr.CodeForbidden)

	_, err = h.graph.RegisterWorkflow(h.ctx, w.system.ID, doc())
	wantCode(t, err, apierr.CodeInvalidInput)

	wf, err := h.graph.RegisterWorkflow(h.ctx, w.system.ID, doc(w.a.ID, w.b.ID))
	if err != nil {
		t.Fatalf("register workflow: %v", err)
	}
	ids, err := h.graph.FunctionsOfWorkflow(h.ctx, wf.ID)
	if err != nil {
		t.Fatalf("functions: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("functions: want=2 got=%d", len(ids))
	}

	_, err = h.graph.FunctionsOfWorkflow(h.ctx, "missing")
	wantCode(t, err, apierr.CodeNotFound)
}

func TestWorkflowEdgesAreDerived(t *testing.T) {
	h := newHarness(t)
	w := seedWorld(t, h, "g1")

	edges, err := h.graph.WorkflowEdges(h.ctx, w.workflow.ID)
	if err != nil {
		t.Fatalf("edges: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("edges: want=1 got=%d", len(edges))
	}
	e := edges[0]
	if e.FromFunctionID != w.a.ID || e.ToFunctionID != w.b.ID {
		t.Fatalf("edge: want=%s->%s got=%s->%s", w.a.ID, w.b.ID, e.FromFunctionID, e.ToFunctionID)
	}
	again, _ := h.graph.WorkflowEdges(h.ctx, w.workflow.ID)
	if again[0].ID != e.ID {
		t.Fatalf("edge id stable: want=%s got=%s", e.ID, again[0].ID)
	}
}
