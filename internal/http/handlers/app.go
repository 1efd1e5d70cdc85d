package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"k8s.io/utils/clock"

	"github.com/yungbote/alohomora/internal/api"
	"github.com/yungbote/alohomora/internal/http/response"
	"github.com/yungbote/alohomora/internal/platform/apierr"
	"github.com/yungbote/alohomora/internal/platform/httpx"
	"github.com/yungbote/alohomora/internal/platform/logger"
	"github.com/yungbote/alohomora/internal/services"
)

// TokenRecorder forwards recorded tokens to the authority.
type TokenRecorder interface {
	RecordToken(ctx context.Context, req api.RecordTokenRequest) (*api.RecordTokenResponse, error)
}

type upstreamErrorResponse struct {
	Error           response.APIError `json:"error"`
	AlohomoraStatus int               `json:"alohomora_status"`
}

// AppHandler is the surface of a client application participating in
// shared sessions.
type AppHandler struct {
	systemID  string
	sessions  services.SessionService
	authority TokenRecorder
	validator services.ValidationService
	clock     clock.PassiveClock
	log       *logger.Logger
}

func NewAppHandler(systemID string, sessions services.SessionService, authority TokenRecorder, validator services.ValidationService, clk clock.PassiveClock, log *logger.Logger) *AppHandler {
	return &AppHandler{
		systemID:  strings.TrimSpace(systemID),
		sessions:  sessions,
		authority: authority,
		validator: validator,
		clock:     clk,
		log:       log.With("handler", "AppHandler"),
	}
}

// POST /new_session
func (h *AppHandler) NewSession(c *gin.Context) {
	var req api.NewSessionRequest
	if err := bindJSON(c, &req); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	sess, err := h.sessions.Create(c.Request.Context(), req.UserID, req.Data)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, api.NewSessionResponse{SessionID: sess.ID, ExpiresAt: sess.ExpiresAt})
}

// POST /register_token
func (h *AppHandler) RegisterToken(c *gin.Context) {
	var req api.RegisterTokenRequest
	if err := bindJSON(c, &req); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	ctx := c.Request.Context()
	sess, err := h.sessions.Get(ctx, req.SessionID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if h.authority == nil {
		response.RespondAPIError(c, apierr.New(http.StatusServiceUnavailable, apierr.CodeUnavailable, errors.New("authority not configured")))
		return
	}

	out, err := h.authority.RecordToken(ctx, api.RecordTokenRequest{
		SystemID:      req.SystemID,
		Token:         req.Token,
		WorkflowID:    req.WorkflowID,
		FunctionID:    req.FunctionID,
		UserID:        sess.UserID,
		TokenMetadata: req.TokenMetadata,
	})
	if err != nil {
		if status := httpx.StatusOf(err); status != 0 {
			h.log.Warn("Authority rejected token", "status", status, "error", err)
			c.JSON(http.StatusBadGateway, upstreamErrorResponse{
				Error:           response.APIError{Message: err.Error(), Code: apierr.CodeUpstreamRejected},
				AlohomoraStatus: status,
			})
			return
		}
		h.log.Warn("Authority unreachable", "error", err)
		response.RespondAPIError(c, apierr.New(http.StatusServiceUnavailable, apierr.CodeUnavailable, errors.New("authority service unavailable")))
		return
	}
	response.RespondCreated(c, api.RegisterTokenResponse{
		Message:          "token registered with alohomora",
		AlohomoraTokenID: out.TokenID,
	})
}

// POST /function
func (h *AppHandler) Function(c *gin.Context) {
	var req api.FunctionRequest
	if err := bindJSON(c, &req); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	ctx := c.Request.Context()
	systemID := req.SystemID
	if strings.TrimSpace(systemID) == "" {
		systemID = h.systemID
	}
	res := h.validator.Validate(ctx, req.UserID, systemID, req.Token)
	if !res.Valid {
		response.RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthorized, errors.New("invalid or expired shared session"))
		return
	}
	h.respondExecuted(c, req, res.Source)
}

func (h *AppHandler) respondExecuted(c *gin.Context, req api.FunctionRequest, source string) {
	result, _ := json.Marshal(map[string]any{
		"executed_at": h.clock.Now().UTC().Format(time.RFC3339Nano),
		"system_id":   h.systemID,
		"function_id": req.FunctionID,
	})
	response.RespondOK(c, api.FunctionResponse{
		Success:    true,
		FunctionID: req.FunctionID,
		Message:    "function executed",
		Source:     source,
		UserID:     req.UserID,
		Result:     result,
	})
}

// POST /receive_session_notification
func (h *AppHandler) ReceiveNotification(c *gin.Context) {
	var n api.SessionNotification
	if err := bindJSON(c, &n); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	sess, err := h.sessions.AcceptNotification(c.Request.Context(), n)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	ack := api.NotificationAck{
		Message:     "notification processed",
		TokenID:     n.TokenID,
		ProcessedAt: h.clock.Now().UTC(),
	}
	if sess != nil {
		ack.LocalSessionCreated = true
		ack.LocalSessionID = sess.ID
	}
	h.log.Info("Session notification received",
		"source_system_id", n.NotificationMetadata.SourceSystemID,
		"workflow_id", n.SessionInfo.WorkflowID,
		"local_session", ack.LocalSessionCreated,
	)
	response.RespondOK(c, ack)
}
