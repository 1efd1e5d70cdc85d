package registry

import (
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/alohomora/internal/domain"
	"github.com/yungbote/alohomora/internal/platform/dbctx"
	"github.com/yungbote/alohomora/internal/platform/logger"
)

type GroupRepo interface {
	Create(dbc dbctx.Context, g *types.Group) error
	Upsert(dbc dbctx.Context, g *types.Group) error
	GetByID(dbc dbctx.Context, groupID string) (*types.Group, error)
}

type groupRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGroupRepo(db *gorm.DB, baseLog *logger.Logger) GroupRepo {
	return &groupRepo{db: db, log: baseLog.With("repo", "GroupRepo")}
}

func (r *groupRepo) Create(dbc dbctx.Context, g *types.Group) error {
	return dbc.DB(r.db).Create(g).Error
}

func (r *groupRepo) Upsert(dbc dbctx.Context, g *types.Group) error {
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "group_id"}}, UpdateAll: true}).
		Create(g).Error
}

func (r *groupRepo) GetByID(dbc dbctx.Context, groupID string) (*types.Group, error) {
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return nil, nil
	}
	var rows []types.Group
	if err := dbc.DB(r.db).Where("group_id = ?", groupID).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
