package tokens

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/alohomora/internal/domain"
	"github.com/yungbote/alohomora/internal/platform/dbctx"
	"github.com/yungbote/alohomora/internal/platform/logger"
)

// InquiryFilter scopes a shared-session lookup. Zero CreatedAfter disables the
// age bound.
type InquiryFilter struct {
	TokenHash    string
	UserID       string
	SystemID     string
	Now          time.Time
	CreatedAfter time.Time
}

type SharedTokenRepo interface {
	Create(dbc dbctx.Context, tok *types.SharedToken) error
	Upsert(dbc dbctx.Context, tok *types.SharedToken) error
	ExistsByHash(dbc dbctx.Context, tokenHash string) (bool, error)
	FindForInquiry(dbc dbctx.Context, f InquiryFilter) ([]*types.SharedToken, error)
	MarkVerified(dbc dbctx.Context, tokenIDs []string, at time.Time) error
	// ListByGroupSince returns up to limit tokens of the group's workflows
	// created at or after since, in (created_at, token_hash) order.
	ListByGroupSince(dbc dbctx.Context, groupID string, since time.Time, limit int) ([]*types.SharedToken, error)
	// ListByGroupAfter returns up to limit tokens strictly after the
	// (at, tokenHash) position, in the same order as ListByGroupSince.
	ListByGroupAfter(dbc dbctx.Context, groupID string, at time.Time, tokenHash string, limit int) ([]*types.SharedToken, error)
	// ListNewestByGroup returns the limit most recently created tokens of the
	// group's workflows, newest first.
	ListNewestByGroup(dbc dbctx.Context, groupID string, limit int) ([]*types.SharedToken, error)
}

type sharedTokenRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSharedTokenRepo(db *gorm.DB, baseLog *logger.Logger) SharedTokenRepo {
	return &sharedTokenRepo{db: db, log: baseLog.With("repo", "SharedTokenRepo")}
}

func (r *sharedTokenRepo) Create(dbc dbctx.Context, tok *types.SharedToken) error {
	return dbc.DB(r.db).Create(tok).Error
}

func (r *sharedTokenRepo) Upsert(dbc dbctx.Context, tok *types.SharedToken) error {
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "token_id"}}, UpdateAll: true}).
		Create(tok).Error
}

func (r *sharedTokenRepo) ExistsByHash(dbc dbctx.Context, tokenHash string) (bool, error) {
	var n int64
	err := dbc.DB(r.db).
		Model(&types.SharedToken{}).
		Where("token_hash = ?", tokenHash).
		Count(&n).Error
	return n > 0, err
}

func (r *sharedTokenRepo) FindForInquiry(dbc dbctx.Context, f InquiryFilter) ([]*types.SharedToken, error) {
	var out []*types.SharedToken
	q := dbc.DB(r.db).
		Where("token_hash = ? AND user_id = ? AND system_id = ?", f.TokenHash, f.UserID, f.SystemID).
		Where("expires_at > ?", f.Now.UTC())
	if !f.CreatedAfter.IsZero() {
		q = q.Where("created_at >= ?", f.CreatedAfter.UTC())
	}
	err := q.Order("created_at DESC").Find(&out).Error
	return out, err
}

func (r *sharedTokenRepo) MarkVerified(dbc dbctx.Context, tokenIDs []string, at time.Time) error {
	if len(tokenIDs) == 0 {
		return nil
	}
	return dbc.DB(r.db).
		Model(&types.SharedToken{}).
		Where("token_id IN ?", tokenIDs).
		Update("last_verified_at", at.UTC()).Error
}

func (r *sharedTokenRepo) groupScope(dbc dbctx.Context, groupID string) *gorm.DB {
	sub := dbc.DB(r.db).Model(&types.Workflow{}).Select("workflow_id").Where("group_id = ?", groupID)
	return dbc.DB(r.db).Where("workflow_id IN (?)", sub)
}

func (r *sharedTokenRepo) ListByGroupSince(dbc dbctx.Context, groupID string, since time.Time, limit int) ([]*types.SharedToken, error) {
	var out []*types.SharedToken
	q := r.groupScope(dbc, groupID)
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since.UTC())
	}
	err := q.Order("created_at ASC, token_hash ASC").Limit(limit).Find(&out).Error
	return out, err
}

func (r *sharedTokenRepo) ListByGroupAfter(dbc dbctx.Context, groupID string, at time.Time, tokenHash string, limit int) ([]*types.SharedToken, error) {
	var out []*types.SharedToken
	at = at.UTC()
	err := r.groupScope(dbc, groupID).
		Where("created_at > ? OR (created_at = ? AND token_hash > ?)", at, at, tokenHash).
		Order("created_at ASC, token_hash ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *sharedTokenRepo) ListNewestByGroup(dbc dbctx.Context, groupID string, limit int) ([]*types.SharedToken, error) {
	var out []*types.SharedToken
	err := r.groupScope(dbc, groupID).
		Order("created_at DESC, token_hash DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
