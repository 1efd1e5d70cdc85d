package registry

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/alohomora/internal/domain"
	"github.com/yungbote/alohomora/internal/platform/dbctx"
	"github.com/yungbote/alohomora/internal/platform/logger"
)

type WorkflowRepo interface {
	Create(dbc dbctx.Context, w *types.Workflow) error
	Upsert(dbc dbctx.Context, w *types.Workflow) error
	GetByID(dbc dbctx.Context, workflowID string) (*types.Workflow, error)
	ListByGroup(dbc dbctx.Context, groupID string) ([]*types.Workflow, error)
}

type workflowRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWorkflowRepo(db *gorm.DB, baseLog *logger.Logger) WorkflowRepo {
	return &workflowRepo{db: db, log: baseLog.With("repo", "WorkflowRepo")}
}

func (r *workflowRepo) Create(dbc dbctx.Context, w *types.Workflow) error {
	return dbc.DB(r.db).Create(w).Error
}

func (r *workflowRepo) Upsert(dbc dbctx.Context, w *types.Workflow) error {
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "workflow_id"}}, UpdateAll: true}).
		Create(w).Error
}

func (r *workflowRepo) GetByID(dbc dbctx.Context, workflowID string) (*types.Workflow, error) {
	if workflowID == "" {
		return nil, nil
	}
	var rows []*types.Workflow
	if err := dbc.DB(r.db).Where("workflow_id = ?", workflowID).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *workflowRepo) ListByGroup(dbc dbctx.Context, groupID string) ([]*types.Workflow, error) {
	var out []*types.Workflow
	if groupID == "" {
		return out, nil
	}
	err := dbc.DB(r.db).
		Where("group_id = ?", groupID).
		Order("created_at ASC, workflow_id ASC").
		Find(&out).Error
	return out, err
}
