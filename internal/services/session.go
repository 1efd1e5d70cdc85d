package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/yungbote/alohomora/internal/api"
	"github.com/yungbote/alohomora/internal/data/repos"
	types "github.com/yungbote/alohomora/internal/domain"
	"github.com/yungbote/alohomora/internal/platform/apierr"
	"github.com/yungbote/alohomora/internal/platform/dbctx"
	"github.com/yungbote/alohomora/internal/platform/logger"
)

// SessionService manages the sessions local to one client application.
type SessionService interface {
	Create(ctx context.Context, userID string, data json.RawMessage) (*types.Session, error)
	// Get returns the session when it exists and has not expired.
	Get(ctx context.Context, sessionID string) (*types.Session, error)
	// AcceptNotification creates a local session for the notified user when the
	// notification asks for one. It returns nil when no session was created.
	AcceptNotification(ctx context.Context, n api.SessionNotification) (*types.Session, error)
	PurgeExpired(ctx context.Context) (int64, error)
}

type sessionService struct {
	repo  repos.SessionRepo
	ttl   time.Duration
	clock clock.PassiveClock
	log   *logger.Logger
}

func NewSessionService(repo repos.SessionRepo, ttl time.Duration, clk clock.PassiveClock, baseLog *logger.Logger) SessionService {
	if ttl <= 0 {
		ttl = types.DefaultSessionTTL
	}
	return &sessionService{repo: repo, ttl: ttl, clock: clk, log: baseLog.With("service", "SessionService")}
}

func (s *sessionService) Create(ctx context.Context, userID string, data json.RawMessage) (*types.Session, error) {
	if err := requireFields("user_id", userID); err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	sess := &types.Session{
		ID:             uuid.NewString(),
		UserID:         userID,
		CreatedAt:      now,
		LastAccessedAt: now,
		ExpiresAt:      now.Add(s.ttl),
		Data:           normalizeJSON(data),
	}
	if err := s.repo.Create(dbctx.New(ctx), sess); err != nil {
		s.log.Error("Storage operation failed", "op", "create session", "error", err)
		return nil, apierr.Unavailable(err)
	}
	s.log.Info("Session created", "session_id", sess.ID, "user_id", userID)
	return sess, nil
}

func (s *sessionService) Get(ctx context.Context, sessionID string) (*types.Session, error) {
	if err := requireFields("session_id", sessionID); err != nil {
		return nil, err
	}
	dbc := dbctx.New(ctx)
	sess, err := s.repo.GetByID(dbc, sessionID)
	if err != nil {
		s.log.Error("Storage operation failed", "op", "get session", "error", err)
		return nil, apierr.Unavailable(err)
	}
	now := s.clock.Now().UTC()
	if sess == nil || sess.Expired(now) {
		return nil, apierr.NotFound("session not found")
	}
	if err := s.repo.TouchLastAccessed(dbc, sess.ID, now); err != nil {
		s.log.Warn("Failed to update last_accessed_at", "session_id", sess.ID, "error", err)
	}
	sess.LastAccessedAt = now
	return sess, nil
}

func (s *sessionService) AcceptNotification(ctx context.Context, n api.SessionNotification) (*types.Session, error) {
	if err := requireFields("token_id", n.TokenID); err != nil {
		return nil, err
	}
	if !n.SessionInfo.CreateLocalSession {
		return nil, nil
	}
	if err := requireFields("session_info.user_id", n.SessionInfo.UserID); err != nil {
		return nil, err
	}
	data, err := json.Marshal(map[string]any{
		"source":           "notification",
		"token_id":         n.TokenID,
		"workflow_id":      n.SessionInfo.WorkflowID,
		"source_system_id": n.NotificationMetadata.SourceSystemID,
	})
	if err != nil {
		return nil, err
	}
	return s.Create(ctx, n.SessionInfo.UserID, data)
}

func (s *sessionService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(dbctx.New(ctx), s.clock.Now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("Expired sessions purged", "count", n)
	}
	return n, nil
}
