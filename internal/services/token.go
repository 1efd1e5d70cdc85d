package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"k8s.io/utils/clock"

	"github.com/yungbote/alohomora/internal/data/db"
	"github.com/yungbote/alohomora/internal/data/repos"
	types "github.com/yungbote/alohomora/internal/domain"
	"github.com/yungbote/alohomora/internal/notify"
	"github.com/yungbote/alohomora/internal/platform/apierr"
	"github.com/yungbote/alohomora/internal/platform/dbctx"
	"github.com/yungbote/alohomora/internal/platform/logger"
)

const TokenStatusRecorded = "recorded"

type RecordTokenInput struct {
	SystemID   string
	Token      string
	WorkflowID string
	FunctionID string
	UserID     string
	Metadata   json.RawMessage
}

type RecordTokenResult struct {
	TokenID   string
	Status    string
	ExpiresAt time.Time
}

// TokenEvents receives a copy of every recorded token. Submit must not block.
type TokenEvents interface {
	Submit(ev notify.TokenRecorded) bool
}

// TokenService is the only place shared tokens are minted.
type TokenService interface {
	Record(ctx context.Context, in RecordTokenInput) (*RecordTokenResult, error)
}

type tokenService struct {
	repos  repos.Registry
	graph  GraphService
	events TokenEvents
	ttl    time.Duration
	clock  clock.PassiveClock
	log    *logger.Logger
}

func NewTokenService(r repos.Registry, graph GraphService, events TokenEvents, ttl time.Duration, clk clock.PassiveClock, baseLog *logger.Logger) TokenService {
	if ttl <= 0 {
		ttl = types.DefaultTokenTTL
	}
	return &tokenService{
		repos:  r,
		graph:  graph,
		events: events,
		ttl:    ttl,
		clock:  clk,
		log:    baseLog.With("service", "TokenService"),
	}
}

type tokenMetadata struct {
	ExpiresAt *string `json:"expires_at"`
}

func (s *tokenService) Record(ctx context.Context, in RecordTokenInput) (*RecordTokenResult, error) {
	dbc := dbctx.New(ctx)
	if err := requireFields(
		"system_id", in.SystemID,
		"token", in.Token,
		"workflow_id", in.WorkflowID,
		"function_id", in.FunctionID,
		"user_id", in.UserID,
	); err != nil {
		return nil, err
	}

	sys, err := s.repos.System.GetByID(dbc, in.SystemID)
	if err != nil {
		return nil, s.storageErr("lookup system", err)
	}
	if sys == nil {
		return nil, apierr.NotFound("system not found")
	}
	groupID := sys.Group()
	if groupID == "" {
		return nil, apierr.Forbidden("system must belong to a group")
	}

	ok, err := s.graph.VerifyFunctionInWorkflow(ctx, in.WorkflowID, in.FunctionID, groupID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apierr.Forbidden("function not found in specified workflow or not accessible by system's group")
	}

	now := s.clock.Now().UTC()
	meta := normalizeJSON(in.Metadata)
	expiresAt, err := s.expiry(meta, now)
	if err != nil {
		return nil, err
	}

	hash := types.SharedTokenHash(in.Token)
	exists, err := s.repos.Token.ExistsByHash(dbc, hash)
	if err != nil {
		return nil, s.storageErr("check token hash", err)
	}
	if exists {
		return nil, apierr.Conflict("token already exists")
	}

	tok := &types.SharedToken{
		ID:         in.Token,
		SystemID:   sys.ID,
		WorkflowID: in.WorkflowID,
		FunctionID: in.FunctionID,
		UserID:     in.UserID,
		TokenHash:  hash,
		ExpiresAt:  expiresAt,
		CreatedAt:  now,
		Metadata:   meta,
	}
	if err := s.repos.Token.Create(dbc, tok); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, apierr.Conflict("token already exists")
		}
		return nil, s.storageErr("insert token", err)
	}
	s.log.Info("Token recorded", "system_id", sys.ID, "workflow_id", in.WorkflowID, "function_id", in.FunctionID, "user_id", in.UserID)

	if s.events != nil {
		ev := notify.TokenRecorded{
			TokenID:        tok.ID,
			SourceSystemID: sys.ID,
			GroupID:        groupID,
			WorkflowID:     tok.WorkflowID,
			UserID:         tok.UserID,
			TokenMetadata:  append(json.RawMessage(nil), meta...),
		}
		if !s.events.Submit(ev) {
			s.log.Warn("Token notification not queued", "workflow_id", tok.WorkflowID)
		}
	}

	return &RecordTokenResult{TokenID: tok.ID, Status: TokenStatusRecorded, ExpiresAt: expiresAt}, nil
}

// expiry reads metadata.expires_at, defaulting to now plus the configured TTL.
func (s *tokenService) expiry(meta []byte, now time.Time) (time.Time, error) {
	if len(meta) == 0 {
		return now.Add(s.ttl), nil
	}
	var m tokenMetadata
	if err := json.Unmarshal(meta, &m); err != nil {
		return time.Time{}, apierr.InvalidInput("invalid token_metadata: %v", err)
	}
	if m.ExpiresAt == nil || strings.TrimSpace(*m.ExpiresAt) == "" {
		return now.Add(s.ttl), nil
	}
	at, err := ParseTimestamp(*m.ExpiresAt)
	if err != nil {
		return time.Time{}, apierr.InvalidInput("invalid expires_at format")
	}
	if !at.After(now) {
		return time.Time{}, apierr.InvalidInput("token has already expired")
	}
	return at, nil
}

func (s *tokenService) storageErr(op string, err error) error {
	s.log.Error("Storage operation failed", "op", op, "error", err)
	return apierr.Unavailable(err)
}
