package services

import (
	"context"
	"encoding/json"
	"slices"
	"strings"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/yungbote/alohomora/internal/data/db"
	"github.com/yungbote/alohomora/internal/data/repos"
	types "github.com/yungbote/alohomora/internal/domain"
	"github.com/yungbote/alohomora/internal/platform/apierr"
	"github.com/yungbote/alohomora/internal/platform/dbctx"
	"github.com/yungbote/alohomora/internal/platform/logger"
)

type CreateInstanceInput struct {
	WorkflowID string
	UserID     string
	SessionID  string
	Metadata   json.RawMessage
}

type MarkStepInput struct {
	InstanceID   string
	FunctionID   string
	SystemID     string
	ResultData   json.RawMessage
	ErrorMessage string
}

// InstanceService records who did what. It never executes functions and never
// rolls step outcomes up into the instance status.
type InstanceService interface {
	Create(ctx context.Context, in CreateInstanceInput) (*types.WorkflowInstance, error)
	MarkStep(ctx context.Context, in MarkStepInput) (*types.WorkflowInstanceStep, error)
	Status(ctx context.Context, workflowID string) (*types.StatusCounts, error)
}

type instanceService struct {
	repos repos.Registry
	graph GraphService
	tx    db.TxRunner
	clock clock.PassiveClock
	log   *logger.Logger
}

func NewInstanceService(r repos.Registry, graph GraphService, tx db.TxRunner, clk clock.PassiveClock, baseLog *logger.Logger) InstanceService {
	return &instanceService{
		repos: r,
		graph: graph,
		tx:    tx,
		clock: clk,
		log:   baseLog.With("service", "InstanceService"),
	}
}

func (s *instanceService) Create(ctx context.Context, in CreateInstanceInput) (*types.WorkflowInstance, error) {
	if err := requireFields("workflow_id", in.WorkflowID, "user_id", in.UserID); err != nil {
		return nil, err
	}
	fns, err := s.graph.FunctionsOfWorkflow(ctx, in.WorkflowID)
	if err != nil {
		return nil, err
	}
	if len(fns) == 0 {
		return nil, apierr.NotFound("workflow not found")
	}

	now := s.clock.Now().UTC()
	inst := &types.WorkflowInstance{
		ID:         uuid.NewString(),
		WorkflowID: in.WorkflowID,
		UserID:     in.UserID,
		Status:     types.InstanceStatusInProgress,
		CreatedAt:  now,
		UpdatedAt:  now,
		Metadata:   normalizeJSON(in.Metadata),
	}
	if sid := strings.TrimSpace(in.SessionID); sid != "" {
		inst.SessionID = &sid
	}
	if err := s.repos.Instance.Create(dbctx.New(ctx), inst); err != nil {
		s.log.Error("Storage operation failed", "op", "create instance", "error", err)
		return nil, apierr.Unavailable(err)
	}
	s.log.Info("Workflow instance created", "instance_id", inst.ID, "workflow_id", inst.WorkflowID)
	return inst, nil
}

func (s *instanceService) MarkStep(ctx context.Context, in MarkStepInput) (*types.WorkflowInstanceStep, error) {
	if err := requireFields("instance_id", in.InstanceID, "function_id", in.FunctionID, "system_id", in.SystemID); err != nil {
		return nil, err
	}
	dbc := dbctx.New(ctx)

	inst, err := s.repos.Instance.GetByID(dbc, in.InstanceID)
	if err != nil {
		return nil, s.storageErr("lookup instance", err)
	}
	if inst == nil {
		return nil, apierr.NotFound("workflow instance not found")
	}

	fn, err := s.repos.Function.GetByID(dbc, in.FunctionID)
	if err != nil {
		return nil, s.storageErr("lookup function", err)
	}
	if fn == nil || fn.SystemID != in.SystemID {
		return nil, apierr.Forbidden("system does not own this function")
	}

	fns, err := s.graph.FunctionsOfWorkflow(ctx, inst.WorkflowID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(fns, in.FunctionID) {
		return nil, apierr.InvalidInput("function not part of workflow")
	}

	now := s.clock.Now().UTC()
	step := &types.WorkflowInstanceStep{
		ID:          uuid.NewString(),
		InstanceID:  inst.ID,
		FunctionID:  in.FunctionID,
		SystemID:    in.SystemID,
		Status:      types.StepStatusCompleted,
		StartedAt:   now,
		CompletedAt: &now,
		ResultData:  normalizeJSON(in.ResultData),
	}
	if msg := strings.TrimSpace(in.ErrorMessage); msg != "" {
		step.Status = types.StepStatusFailed
		step.ErrorMessage = &msg
	}

	var stored *types.WorkflowInstanceStep
	err = s.tx.InTx(ctx, func(txc dbctx.Context) error {
		if err := s.repos.Step.Upsert(txc, step); err != nil {
			return err
		}
		if err := s.repos.Instance.TouchUpdatedAt(txc, inst.ID, now); err != nil {
			return err
		}
		row, err := s.repos.Step.GetByTriple(txc, inst.ID, in.FunctionID, in.SystemID)
		stored = row
		return err
	})
	if err != nil {
		return nil, s.storageErr("record step", err)
	}
	if stored == nil {
		stored = step
	}
	s.log.Info("Step recorded", "instance_id", inst.ID, "function_id", in.FunctionID, "status", stored.Status)
	return stored, nil
}

func (s *instanceService) Status(ctx context.Context, workflowID string) (*types.StatusCounts, error) {
	if err := requireFields("workflow_id", workflowID); err != nil {
		return nil, err
	}
	byStatus, err := s.repos.Instance.CountByStatus(dbctx.New(ctx), workflowID)
	if err != nil {
		return nil, s.storageErr("count instances", err)
	}
	out := &types.StatusCounts{
		Completed:  byStatus[types.InstanceStatusCompleted],
		InProgress: byStatus[types.InstanceStatusInProgress] + byStatus[types.InstanceStatusCreated],
		Failed:     byStatus[types.InstanceStatusFailed],
	}
	for _, n := range byStatus {
		out.Total += n
	}
	return out, nil
}

func (s *instanceService) storageErr(op string, err error) error {
	s.log.Error("Storage operation failed", "op", op, "error", err)
	return apierr.Unavailable(err)
}
