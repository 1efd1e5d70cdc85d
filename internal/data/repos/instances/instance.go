package instances

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/alohomora/internal/domain"
	"github.com/yungbote/alohomora/internal/platform/dbctx"
	"github.com/yungbote/alohomora/internal/platform/logger"
)

type InstanceRepo interface {
	Create(dbc dbctx.Context, inst *types.WorkflowInstance) error
	GetByID(dbc dbctx.Context, instanceID string) (*types.WorkflowInstance, error)
	TouchUpdatedAt(dbc dbctx.Context, instanceID string, at time.Time) error
	CountByStatus(dbc dbctx.Context, workflowID string) (map[string]int64, error)
}

type instanceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewInstanceRepo(db *gorm.DB, baseLog *logger.Logger) InstanceRepo {
	return &instanceRepo{db: db, log: baseLog.With("repo", "InstanceRepo")}
}

func (r *instanceRepo) Create(dbc dbctx.Context, inst *types.WorkflowInstance) error {
	return dbc.DB(r.db).Create(inst).Error
}

func (r *instanceRepo) GetByID(dbc dbctx.Context, instanceID string) (*types.WorkflowInstance, error) {
	if instanceID == "" {
		return nil, nil
	}
	var rows []*types.WorkflowInstance
	if err := dbc.DB(r.db).Where("instance_id = ?", instanceID).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *instanceRepo) TouchUpdatedAt(dbc dbctx.Context, instanceID string, at time.Time) error {
	return dbc.DB(r.db).
		Model(&types.WorkflowInstance{}).
		Where("instance_id = ?", instanceID).
		Update("updated_at", at.UTC()).Error
}

func (r *instanceRepo) CountByStatus(dbc dbctx.Context, workflowID string) (map[string]int64, error) {
	type row struct {
		Status string
		N      int64
	}
	var rows []row
	err := dbc.DB(r.db).
		Model(&types.WorkflowInstance{}).
		Select("status, COUNT(*) AS n").
		Where("workflow_id = ?", workflowID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}

type StepRepo interface {
	// Upsert inserts the step or overwrites the existing row for the same
	// (instance, function, system) triple.
	Upsert(dbc dbctx.Context, step *types.WorkflowInstanceStep) error
	GetByTriple(dbc dbctx.Context, instanceID, functionID, systemID string) (*types.WorkflowInstanceStep, error)
	ListByInstance(dbc dbctx.Context, instanceID string) ([]*types.WorkflowInstanceStep, error)
}

type stepRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStepRepo(db *gorm.DB, baseLog *logger.Logger) StepRepo {
	return &stepRepo{db: db, log: baseLog.With("repo", "StepRepo")}
}

func (r *stepRepo) Upsert(dbc dbctx.Context, step *types.WorkflowInstanceStep) error {
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "instance_id"}, {Name: "function_id"}, {Name: "system_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status", "completed_at", "result_data", "error_message",
			}),
		}).
		Create(step).Error
}

func (r *stepRepo) GetByTriple(dbc dbctx.Context, instanceID, functionID, systemID string) (*types.WorkflowInstanceStep, error) {
	var rows []*types.WorkflowInstanceStep
	err := dbc.DB(r.db).
		Where("instance_id = ? AND function_id = ? AND system_id = ?", instanceID, functionID, systemID).
		Limit(1).
		Find(&rows).Error
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *stepRepo) ListByInstance(dbc dbctx.Context, instanceID string) ([]*types.WorkflowInstanceStep, error) {
	var out []*types.WorkflowInstanceStep
	err := dbc.DB(r.db).
		Where("instance_id = ?", instanceID).
		Order("started_at ASC").
		Find(&out).Error
	return out, err
}
