package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/yungbote/alohomora/internal/data/db"
	"github.com/yungbote/alohomora/internal/data/repos"
	types "github.com/yungbote/alohomora/internal/domain"
	"github.com/yungbote/alohomora/internal/platform/apierr"
	"github.com/yungbote/alohomora/internal/platform/dbctx"
	"github.com/yungbote/alohomora/internal/platform/logger"
)

type RegisterSystemInput struct {
	Name        string
	PublicKey   string
	GroupID     string
	CallbackURL string
}

// GraphService owns the registry of groups, systems, functions and workflows
// and the group-membership rules between them.
type GraphService interface {
	RegisterGroup(ctx context.Context, name, description string) (*types.Group, error)
	RegisterSystem(ctx context.Context, in RegisterSystemInput) (*types.System, error)
	RegisterFunction(ctx context.Context, systemID, name, url string) (*types.Function, error)
	RegisterWorkflow(ctx context.Context, systemID string, graphDoc json.RawMessage) (*types.Workflow, error)
	VerifyFunctionInWorkflow(ctx context.Context, workflowID, functionID, groupID string) (bool, error)
	FunctionsOfWorkflow(ctx context.Context, workflowID string) ([]string, error)
	WorkflowEdges(ctx context.Context, workflowID string) ([]types.WorkflowEdge, error)
	GetSystem(ctx context.Context, systemID string) (*types.System, error)
	GetSystemByName(ctx context.Context, name string) (*types.System, error)
}

type graphService struct {
	repos repos.Registry
	clock clock.PassiveClock
	log   *logger.Logger
}

func NewGraphService(r repos.Registry, clk clock.PassiveClock, baseLog *logger.Logger) GraphService {
	return &graphService{repos: r, clock: clk, log: baseLog.With("service", "GraphService")}
}

func (s *graphService) now() time.Time { return s.clock.Now().UTC() }

func (s *graphService) RegisterGroup(ctx context.Context, name, description string) (*types.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apierr.InvalidInput("name must be a non-empty string")
	}
	g := &types.Group{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   s.now(),
	}
	if err := s.repos.Group.Create(dbctx.New(ctx), g); err != nil {
		return nil, s.storageErr("create group", err)
	}
	s.log.Info("Group registered", "group_id", g.ID)
	return g, nil
}

func (s *graphService) RegisterSystem(ctx context.Context, in RegisterSystemInput) (*types.System, error) {
	dbc := dbctx.New(ctx)
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apierr.InvalidInput("system_name must be a non-empty string")
	}
	if strings.TrimSpace(in.PublicKey) == "" {
		return nil, apierr.InvalidInput("public_key must be a non-empty string")
	}

	existing, err := s.repos.System.GetByName(dbc, name)
	if err != nil {
		return nil, s.storageErr("lookup system name", err)
	}
	if existing != nil {
		return nil, apierr.Conflict("system name %q already registered", name)
	}

	now := s.now()
	sys := &types.System{
		ID:         uuid.NewString(),
		Name:       name,
		PublicKey:  in.PublicKey,
		CreatedAt:  now,
		LastSeenAt: &now,
	}
	if gid := strings.TrimSpace(in.GroupID); gid != "" {
		g, err := s.repos.Group.GetByID(dbc, gid)
		if err != nil {
			return nil, s.storageErr("lookup group", err)
		}
		if g == nil {
			return nil, apierr.NotFound("group not found")
		}
		sys.GroupID = &gid
	}
	if cb := strings.TrimSpace(in.CallbackURL); cb != "" {
		sys.CallbackURL = &cb
	}

	if err := s.repos.System.Create(dbc, sys); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, apierr.Conflict("system name %q already registered", name)
		}
		return nil, s.storageErr("create system", err)
	}
	s.log.Info("System registered", "system_id", sys.ID, "group_id", sys.Group())
	return sys, nil
}

func (s *graphService) RegisterFunction(ctx context.Context, systemID, name, url string) (*types.Function, error) {
	dbc := dbctx.New(ctx)
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apierr.InvalidInput("function_name must be a non-empty string")
	}
	sys, err := s.lookupGroupedSystem(dbc, systemID)
	if err != nil {
		return nil, err
	}
	f := &types.Function{
		ID:        uuid.NewString(),
		SystemID:  sys.ID,
		GroupID:   sys.Group(),
		Name:      name,
		URL:       strings.TrimSpace(url),
		CreatedAt: s.now(),
	}
	if err := s.repos.Function.Create(dbc, f); err != nil {
		return nil, s.storageErr("create function", err)
	}
	s.touch(dbc, sys.ID)
	s.log.Info("Function registered", "function_id", f.ID, "system_id", sys.ID, "group_id", f.GroupID)
	return f, nil
}

func (s *graphService) RegisterWorkflow(ctx context.Context, systemID string, graphDoc json.RawMessage) (*types.Workflow, error) {
	dbc := dbctx.New(ctx)
	g, err := types.ParseGraphDocument(graphDoc)
	if err != nil {
		return nil, apierr.InvalidInput("workflow_graph: %v", err)
	}
	if len(g.Vertices) == 0 {
		return nil, apierr.InvalidInput("workflow_graph must contain at least one vertex")
	}
	sys, err := s.lookupGroupedSystem(dbc, systemID)
	if err != nil {
		return nil, err
	}
	groupID := sys.Group()

	ids := g.FunctionIDs()
	fns, err := s.repos.Function.ListByIDs(dbc, ids)
	if err != nil {
		return nil, s.storageErr("load workflow functions", err)
	}
	inGroup := make(map[string]bool, len(fns))
	for _, f := range fns {
		if f.GroupID == groupID {
			inGroup[f.ID] = true
		}
	}
	for _, id := range ids {
		if !inGroup[id] {
			return nil, apierr.Forbidden("function %s is not a member of the system's group", id)
		}
	}

	w := &types.Workflow{
		ID:        uuid.NewString(),
		SystemID:  sys.ID,
		GroupID:   groupID,
		Data:      normalizeJSON(graphDoc),
		CreatedAt: s.now(),
	}
	if err := s.repos.Workflow.Create(dbc, w); err != nil {
		return nil, s.storageErr("create workflow", err)
	}
	s.touch(dbc, sys.ID)
	s.log.Info("Workflow registered", "workflow_id", w.ID, "group_id", groupID, "vertices", len(ids), "edges", len(g.Arcs()))
	return w, nil
}

func (s *graphService) VerifyFunctionInWorkflow(ctx context.Context, workflowID, functionID, groupID string) (bool, error) {
	dbc := dbctx.New(ctx)
	ok, err := s.repos.Function.ExistsInGroup(dbc, functionID, groupID)
	if err != nil {
		return false, s.storageErr("verify function group", err)
	}
	if !ok {
		return false, nil
	}
	w, err := s.repos.Workflow.GetByID(dbc, workflowID)
	if err != nil {
		return false, s.storageErr("load workflow", err)
	}
	if w == nil || w.GroupID != groupID {
		return false, nil
	}
	g, err := w.Graph()
	if err != nil {
		s.log.Warn("Stored workflow graph is unreadable", "workflow_id", workflowID, "error", err)
		return false, nil
	}
	touched, arcs := g.Touches(functionID)
	return touched || arcs == 0, nil
}

func (s *graphService) FunctionsOfWorkflow(ctx context.Context, workflowID string) ([]string, error) {
	w, err := s.repos.Workflow.GetByID(dbctx.New(ctx), workflowID)
	if err != nil {
		return nil, s.storageErr("load workflow", err)
	}
	if w == nil {
		return nil, apierr.NotFound("workflow not found")
	}
	g, err := w.Graph()
	if err != nil {
		s.log.Warn("Stored workflow graph is unreadable", "workflow_id", workflowID, "error", err)
		return []string{}, nil
	}
	return g.FunctionIDs(), nil
}

func (s *graphService) WorkflowEdges(ctx context.Context, workflowID string) ([]types.WorkflowEdge, error) {
	w, err := s.repos.Workflow.GetByID(dbctx.New(ctx), workflowID)
	if err != nil {
		return nil, s.storageErr("load workflow", err)
	}
	if w == nil {
		return nil, apierr.NotFound("workflow not found")
	}
	edges, err := w.Edges()
	if err != nil {
		return nil, apierr.InvalidState("workflow graph is unreadable")
	}
	return edges, nil
}

func (s *graphService) GetSystem(ctx context.Context, systemID string) (*types.System, error) {
	if strings.TrimSpace(systemID) == "" {
		return nil, apierr.InvalidInput("invalid system_id")
	}
	sys, err := s.repos.System.GetByID(dbctx.New(ctx), systemID)
	if err != nil {
		return nil, s.storageErr("lookup system", err)
	}
	if sys == nil {
		return nil, apierr.NotFound("system not found")
	}
	return sys, nil
}

func (s *graphService) GetSystemByName(ctx context.Context, name string) (*types.System, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apierr.InvalidInput("invalid system_name")
	}
	sys, err := s.repos.System.GetByName(dbctx.New(ctx), name)
	if err != nil {
		return nil, s.storageErr("lookup system", err)
	}
	if sys == nil {
		return nil, apierr.NotFound("system not found")
	}
	return sys, nil
}

// lookupGroupedSystem fails NotFound for unknown systems and InvalidState for
// systems without a group.
func (s *graphService) lookupGroupedSystem(dbc dbctx.Context, systemID string) (*types.System, error) {
	sys, err := s.repos.System.GetByID(dbc, strings.TrimSpace(systemID))
	if err != nil {
		return nil, s.storageErr("lookup system", err)
	}
	if sys == nil {
		return nil, apierr.NotFound("system not found")
	}
	if sys.Group() == "" {
		return nil, apierr.InvalidState("system is not assigned to a group")
	}
	return sys, nil
}

func (s *graphService) touch(dbc dbctx.Context, systemID string) {
	if err := s.repos.System.TouchLastSeen(dbc, systemID, s.now()); err != nil {
		s.log.Warn("Failed to update system last_seen_at", "system_id", systemID, "error", err)
	}
}

func (s *graphService) storageErr(op string, err error) error {
	s.log.Error("Storage operation failed", "op", op, "error", err)
	return apierr.Unavailable(err)
}
