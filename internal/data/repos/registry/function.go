package registry

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/alohomora/internal/domain"
	"github.com/yungbote/alohomora/internal/platform/dbctx"
	"github.com/yungbote/alohomora/internal/platform/logger"
)

type FunctionRepo interface {
	Create(dbc dbctx.Context, f *types.Function) error
	Upsert(dbc dbctx.Context, f *types.Function) error
	GetByID(dbc dbctx.Context, functionID string) (*types.Function, error)
	ListByIDs(dbc dbctx.Context, functionIDs []string) ([]*types.Function, error)
	ListByGroup(dbc dbctx.Context, groupID string) ([]*types.Function, error)
	ExistsInGroup(dbc dbctx.Context, functionID, groupID string) (bool, error)
}

type functionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFunctionRepo(db *gorm.DB, baseLog *logger.Logger) FunctionRepo {
	return &functionRepo{db: db, log: baseLog.With("repo", "FunctionRepo")}
}

func (r *functionRepo) Create(dbc dbctx.Context, f *types.Function) error {
	return dbc.DB(r.db).Create(f).Error
}

func (r *functionRepo) Upsert(dbc dbctx.Context, f *types.Function) error {
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "function_id"}}, UpdateAll: true}).
		Create(f).Error
}

func (r *functionRepo) GetByID(dbc dbctx.Context, functionID string) (*types.Function, error) {
	if functionID == "" {
		return nil, nil
	}
	var rows []*types.Function
	if err := dbc.DB(r.db).Where("function_id = ?", functionID).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *functionRepo) ListByIDs(dbc dbctx.Context, functionIDs []string) ([]*types.Function, error) {
	var out []*types.Function
	if len(functionIDs) == 0 {
		return out, nil
	}
	err := dbc.DB(r.db).Where("function_id IN ?", functionIDs).Find(&out).Error
	return out, err
}

func (r *functionRepo) ListByGroup(dbc dbctx.Context, groupID string) ([]*types.Function, error) {
	var out []*types.Function
	if groupID == "" {
		return out, nil
	}
	err := dbc.DB(r.db).
		Where("group_id = ?", groupID).
		Order("created_at ASC, function_id ASC").
		Find(&out).Error
	return out, err
}

func (r *functionRepo) ExistsInGroup(dbc dbctx.Context, functionID, groupID string) (bool, error) {
	if functionID == "" || groupID == "" {
		return false, nil
	}
	var n int64
	err := dbc.DB(r.db).
		Model(&types.Function{}).
		Where("function_id = ? AND group_id = ?", functionID, groupID).
		Count(&n).Error
	return n > 0, err
}
