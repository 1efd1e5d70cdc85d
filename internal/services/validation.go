package services

import (
	"context"
	"strings"

	"github.com/yungbote/alohomora/internal/api"
	"github.com/yungbote/alohomora/internal/platform/logger"
)

const (
	SourceReplica = "replica"
	SourceMain    = "main"
	SourceNone    = "none"
)

// InquiryClient is the remote side of a shared-session inquiry.
type InquiryClient interface {
	Inquire(ctx context.Context, req api.InquiryRequest) (*api.InquiryResponse, error)
}

type ValidationResult struct {
	Valid    bool
	Source   string
	Sessions []api.InquirySession
}

// ValidationService asks the replica first and falls back to the authority on
// any error or miss. Either client may be nil.
type ValidationService interface {
	Validate(ctx context.Context, userID, systemID, token string) *ValidationResult
}

type validationService struct {
	replica   InquiryClient
	authority InquiryClient
	log       *logger.Logger
}

func NewValidationService(replica, authority InquiryClient, baseLog *logger.Logger) ValidationService {
	return &validationService{replica: replica, authority: authority, log: baseLog.With("service", "ValidationService")}
}

func (s *validationService) Validate(ctx context.Context, userID, systemID, token string) *ValidationResult {
	req := api.InquiryRequest{
		SystemID: strings.TrimSpace(systemID),
		UserID:   strings.TrimSpace(userID),
		Token:    token,
	}
	tiers := []struct {
		source string
		client InquiryClient
	}{
		{SourceReplica, s.replica},
		{SourceMain, s.authority},
	}
	for _, tier := range tiers {
		if tier.client == nil {
			continue
		}
		resp, err := tier.client.Inquire(ctx, req)
		if err != nil {
			s.log.Warn("Inquiry failed, falling through", "source", tier.source, "error", err)
			continue
		}
		if resp != nil && resp.SessionExists {
			return &ValidationResult{Valid: true, Source: tier.source, Sessions: resp.Sessions}
		}
		s.log.Debug("Inquiry miss", "source", tier.source, "system_id", req.SystemID)
	}
	return &ValidationResult{Valid: false, Source: SourceNone}
}
