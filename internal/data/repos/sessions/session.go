package sessions

import (
	"time"

	"gorm.io/gorm"

	types "github.com/yungbote/alohomora/internal/domain"
	"github.com/yungbote/alohomora/internal/platform/dbctx"
	"github.com/yungbote/alohomora/internal/platform/logger"
)

type SessionRepo interface {
	Create(dbc dbctx.Context, s *types.Session) error
	GetByID(dbc dbctx.Context, sessionID string) (*types.Session, error)
	TouchLastAccessed(dbc dbctx.Context, sessionID string, at time.Time) error
	DeleteExpired(dbc dbctx.Context, now time.Time) (int64, error)
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, baseLog *logger.Logger) SessionRepo {
	return &sessionRepo{db: db, log: baseLog.With("repo", "SessionRepo")}
}

func (r *sessionRepo) Create(dbc dbctx.Context, s *types.Session) error {
	return dbc.DB(r.db).Create(s).Error
}

func (r *sessionRepo) GetByID(dbc dbctx.Context, sessionID string) (*types.Session, error) {
	if sessionID == "" {
		return nil, nil
	}
	var rows []*types.Session
	if err := dbc.DB(r.db).Where("session_id = ?", sessionID).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *sessionRepo) TouchLastAccessed(dbc dbctx.Context, sessionID string, at time.Time) error {
	return dbc.DB(r.db).
		Model(&types.Session{}).
		Where("session_id = ?", sessionID).
		Update("last_accessed_at", at.UTC()).Error
}

func (r *sessionRepo) DeleteExpired(dbc dbctx.Context, now time.Time) (int64, error) {
	res := dbc.DB(r.db).Where("expires_at <= ?", now.UTC()).Delete(&types.Session{})
	return res.RowsAffected, res.Error
}
