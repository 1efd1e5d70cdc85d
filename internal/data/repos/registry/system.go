package registry

import (
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/alohomora/internal/domain"
	"github.com/yungbote/alohomora/internal/platform/dbctx"
	"github.com/yungbote/alohomora/internal/platform/logger"
)

type SystemRepo interface {
	Create(dbc dbctx.Context, s *types.System) error
	Upsert(dbc dbctx.Context, s *types.System) error
	GetByID(dbc dbctx.Context, systemID string) (*types.System, error)
	GetByName(dbc dbctx.Context, name string) (*types.System, error)
	ListByGroup(dbc dbctx.Context, groupID string) ([]*types.System, error)
	// ListCallbackTargets returns group members with a callback URL, except
	// excludeSystemID.
	ListCallbackTargets(dbc dbctx.Context, groupID, excludeSystemID string) ([]*types.System, error)
	TouchLastSeen(dbc dbctx.Context, systemID string, at time.Time) error
}

type systemRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSystemRepo(db *gorm.DB, baseLog *logger.Logger) SystemRepo {
	return &systemRepo{db: db, log: baseLog.With("repo", "SystemRepo")}
}

func (r *systemRepo) Create(dbc dbctx.Context, s *types.System) error {
	return dbc.DB(r.db).Create(s).Error
}

func (r *systemRepo) Upsert(dbc dbctx.Context, s *types.System) error {
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "system_id"}}, UpdateAll: true}).
		Create(s).Error
}

func (r *systemRepo) GetByID(dbc dbctx.Context, systemID string) (*types.System, error) {
	systemID = strings.TrimSpace(systemID)
	if systemID == "" {
		return nil, nil
	}
	return r.first(dbc, "system_id = ?", systemID)
}

func (r *systemRepo) GetByName(dbc dbctx.Context, name string) (*types.System, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	return r.first(dbc, "system_name = ?", name)
}

func (r *systemRepo) first(dbc dbctx.Context, query string, arg any) (*types.System, error) {
	var rows []*types.System
	if err := dbc.DB(r.db).Where(query, arg).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *systemRepo) ListByGroup(dbc dbctx.Context, groupID string) ([]*types.System, error) {
	var out []*types.System
	if groupID == "" {
		return out, nil
	}
	err := dbc.DB(r.db).
		Where("group_id = ?", groupID).
		Order("created_at ASC, system_id ASC").
		Find(&out).Error
	return out, err
}

func (r *systemRepo) ListCallbackTargets(dbc dbctx.Context, groupID, excludeSystemID string) ([]*types.System, error) {
	var out []*types.System
	if groupID == "" {
		return out, nil
	}
	err := dbc.DB(r.db).
		Where("group_id = ? AND system_id <> ?", groupID, excludeSystemID).
		Where("callback_url IS NOT NULL AND callback_url <> ''").
		Order("system_id ASC").
		Find(&out).Error
	return out, err
}

func (r *systemRepo) TouchLastSeen(dbc dbctx.Context, systemID string, at time.Time) error {
	return dbc.DB(r.db).
		Model(&types.System{}).
		Where("system_id = ?", systemID).
		Update("last_seen_at", at.UTC()).Error
}
