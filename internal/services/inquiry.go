package services

import (
	"context"
	"time"

	"k8s.io/utils/clock"

	"github.com/yungbote/alohomora/internal/api"
	"github.com/yungbote/alohomora/internal/data/repos"
	types "github.com/yungbote/alohomora/internal/domain"
	"github.com/yungbote/alohomora/internal/platform/apierr"
	"github.com/yungbote/alohomora/internal/platform/dbctx"
	"github.com/yungbote/alohomora/internal/platform/logger"
)

type InquiryInput struct {
	SystemID string
	UserID   string
	Token    string
}

// InquiryService answers shared-session inquiries. A token only matches when
// hash, user and system agree, it has not expired, and it is younger than the
// freshness window (zero disables the age bound).
type InquiryService interface {
	Inquire(ctx context.Context, in InquiryInput) (*api.InquiryResponse, error)
}

type inquiryService struct {
	tokens    repos.SharedTokenRepo
	freshness time.Duration
	clock     clock.PassiveClock
	log       *logger.Logger
}

func NewInquiryService(tokens repos.SharedTokenRepo, freshness time.Duration, clk clock.PassiveClock, baseLog *logger.Logger) InquiryService {
	return &inquiryService{
		tokens:    tokens,
		freshness: freshness,
		clock:     clk,
		log:       baseLog.With("service", "InquiryService"),
	}
}

func (s *inquiryService) Inquire(ctx context.Context, in InquiryInput) (*api.InquiryResponse, error) {
	if err := requireFields("system_id", in.SystemID, "user_id", in.UserID, "token", in.Token); err != nil {
		return nil, err
	}
	dbc := dbctx.New(ctx)
	now := s.clock.Now().UTC()
	filter := repos.InquiryFilter{
		TokenHash: types.SharedTokenHash(in.Token),
		UserID:    in.UserID,
		SystemID:  in.SystemID,
		Now:       now,
	}
	if s.freshness > 0 {
		filter.CreatedAfter = now.Add(-s.freshness)
	}

	rows, err := s.tokens.FindForInquiry(dbc, filter)
	if err != nil {
		s.log.Error("Storage operation failed", "op", "inquiry lookup", "error", err)
		return nil, apierr.Unavailable(err)
	}

	out := &api.InquiryResponse{SessionExists: len(rows) > 0, Sessions: make([]api.InquirySession, 0, len(rows))}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
		out.Sessions = append(out.Sessions, api.InquirySession{
			UserID:     r.UserID,
			SystemID:   r.SystemID,
			WorkflowID: r.WorkflowID,
			FunctionID: r.FunctionID,
			CreatedAt:  r.CreatedAt,
			ExpiresAt:  r.ExpiresAt,
		})
	}
	if len(ids) > 0 {
		if err := s.tokens.MarkVerified(dbc, ids, now); err != nil {
			s.log.Warn("Failed to update last_verified_at", "error", err)
		}
	}
	s.log.Debug("Shared session inquiry", "system_id", in.SystemID, "user_id", in.UserID, "matches", len(rows))
	return out, nil
}
