package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/alohomora/internal/api"
	"github.com/yungbote/alohomora/internal/http/response"
	"github.com/yungbote/alohomora/internal/services"
)

type TokenHandler struct {
	tokens services.TokenService
}

func NewTokenHandler(tokens services.TokenService) *TokenHandler {
	return &TokenHandler{tokens: tokens}
}

// POST /record_token
func (h *TokenHandler) RecordToken(c *gin.Context) {
	var req api.RecordTokenRequest
	if err := bindJSON(c, &req); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	res, err := h.tokens.Record(c.Request.Context(), services.RecordTokenInput{
		SystemID:   req.SystemID,
		Token:      req.Token,
		WorkflowID: req.WorkflowID,
		FunctionID: req.FunctionID,
		UserID:     req.UserID,
		Metadata:   req.TokenMetadata,
	})
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, api.RecordTokenResponse{TokenID: res.TokenID, Status: res.Status})
}

// InquiryHandler serves shared-session inquiries on authority and replica.
type InquiryHandler struct {
	inquiry services.InquiryService
}

func NewInquiryHandler(inquiry services.InquiryService) *InquiryHandler {
	return &InquiryHandler{inquiry: inquiry}
}

// POST /shared_session_inquiry
func (h *InquiryHandler) SharedSessionInquiry(c *gin.Context) {
	var req api.InquiryRequest
	if err := bindJSON(c, &req); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	resp, err := h.inquiry.Inquire(c.Request.Context(), services.InquiryInput{
		SystemID: req.SystemID,
		UserID:   req.UserID,
		Token:    req.Token,
	})
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, resp)
}
