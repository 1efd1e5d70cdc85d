package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/yungbote/alohomora/internal/data/db"
	"github.com/yungbote/alohomora/internal/data/repos"
	"github.com/yungbote/alohomora/internal/data/repos/testutil"
	"github.com/yungbote/alohomora/internal/services"
)

const testAdminKey = "let-me-in"

type authority struct {
	engine *gin.Engine
	clock  *clocktesting.FakeClock
}

func newAuthority(t *testing.T) *authority {
	t.Helper()
	gin.SetMode(gin.TestMode)
	gdb := testutil.DB(t)
	log := testutil.Logger(t)
	clk := clocktesting.NewFakeClock(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	r := repos.NewRegistry(gdb, log)
	graph := services.NewGraphService(r, clk, log)

	admin := services.NewAdminKey(testAdminKey)
	registry := NewRegistryHandler(graph, admin)
	tokens := NewTokenHandler(services.NewTokenService(r, graph, nil, 0, clk, log))
	inquiry := NewInquiryHandler(services.NewInquiryService(r.Token, 5*time.Minute, clk, log))
	instances := NewInstanceHandler(services.NewInstanceService(r, graph, db.NewGormTxRunner(gdb), clk, log))
	sync := NewSyncHandler(services.NewSyncService(r, services.SyncConfig{}, clk, log), admin)
	health := NewHealthHandler("authority")

	e := gin.New()
	e.GET("/hello", health.Hello)
	e.POST("/register_group", registry.RegisterGroup)
	e.POST("/register_system", registry.RegisterSystem)
	e.POST("/register_function", registry.RegisterFunction)
	e.POST("/register_workflow", registry.RegisterWorkflow)
	e.GET("/system/:system_id", registry.GetSystem)
	e.GET("/system/name/:system_name", registry.GetSystemByName)
	e.GET("/workflow/:workflow_id/functions", registry.WorkflowFunctions)
	e.POST("/record_token", tokens.RecordToken)
	e.POST("/shared_session_inquiry", inquiry.SharedSessionInquiry)
	e.POST("/replica_sync", sync.ReplicaSync)
	e.POST("/create_workflow_instance", instances.CreateInstance)
	e.POST("/mark_step_completion", instances.MarkStep)
	e.GET("/workflow/:workflow_id/status", instances.WorkflowStatus)
	return &authority{engine: e, clock: clk}
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequestWithContext(context.Background(), method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return out
}

func wantStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status: want=%d got=%d body=%s", want, rec.Code, rec.Body.String())
	}
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

// scenario registers group g1 (under a generated id), system A, function f1 and a
// workflow w1 over the single vertex f1.
type scenario struct {
	groupID, systemID, functionID, workflowID string
}

func setupScenario(t *testing.T, a *authority) scenario {
	t.Helper()
	var s scenario

	rec := do(t, a.engine, http.MethodPost, "/register_group", map[string]any{"name": "g1", "admin_key": testAdminKey})
	wantStatus(t, rec, http.StatusCreated)
	s.groupID = decode[map[string]string](t, rec)["group_id"]

	rec = do(t, a.engine, http.MethodPost, "/register_system", map[string]any{
		"system_name": "A", "public_key": "pk-A", "group_id": s.groupID, "admin_key": testAdminKey,
	})
	wantStatus(t, rec, http.StatusCreated)
	s.systemID = decode[map[string]string](t, rec)["system_id"]

	rec = do(t, a.engine, http.MethodPost, "/register_function", map[string]any{
		"system_id": s.systemID, "function_name": "f1", "url": "http://a/f1",
	})
	wantStatus(t, rec, http.StatusCreated)
	s.functionID = decode[map[string]string](t, rec)["function_id"]

	rec = do(t, a.engine, http.MethodPost, "/register_workflow", map[string]any{
		"system_id": s.systemID,
		"workflow_graph": map[string]any{
			"vertices": map[string]any{s.functionID: map[string]string{"f": "f1", "s": s.systemID}},
			"adj":      map[string]any{},
		},
	})
	wantStatus(t, rec, http.StatusCreated)
	s.workflowID = decode[map[string]string](t, rec)["workflow_id"]
	return s
}
