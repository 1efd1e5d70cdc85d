// Package api holds the JSON request and response bodies exchanged between
// authority, replicas, client applications and notified systems.
package api

import (
	"encoding/json"
	"time"

	types "github.com/yungbote/alohomora/internal/domain"
)

type RegisterGroupRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	AdminKey    string `json:"admin_key"`
}

type RegisterGroupResponse struct {
	GroupID string `json:"group_id"`
}

type RegisterSystemRequest struct {
	SystemName  string  `json:"system_name" binding:"required"`
	PublicKey   string  `json:"public_key" binding:"required"`
	GroupID     *string `json:"group_id"`
	CallbackURL *string `json:"callback_url"`
	AdminKey    string  `json:"admin_key"`
}

type RegisterSystemResponse struct {
	SystemID string `json:"system_id"`
}

type SystemInfo struct {
	SystemID   string  `json:"system_id"`
	SystemName string  `json:"system_name"`
	GroupID    *string `json:"group_id"`
}

func NewSystemInfo(s *types.System) SystemInfo {
	return SystemInfo{SystemID: s.ID, SystemName: s.Name, GroupID: s.GroupID}
}

type RegisterFunctionRequest struct {
	SystemID     string `json:"system_id" binding:"required"`
	FunctionName string `json:"function_name" binding:"required"`
	URL          string `json:"url" binding:"required"`
}

type RegisterFunctionResponse struct {
	FunctionID string `json:"function_id"`
}

type RegisterWorkflowRequest struct {
	SystemID      string          `json:"system_id" binding:"required"`
	WorkflowGraph json.RawMessage `json:"workflow_graph" binding:"required"`
}

type RegisterWorkflowResponse struct {
	WorkflowID string `json:"workflow_id"`
}

type WorkflowFunctionsResponse struct {
	WorkflowID  string               `json:"workflow_id"`
	FunctionIDs []string             `json:"function_ids"`
	Edges       []types.WorkflowEdge `json:"edges"`
}

type RecordTokenRequest struct {
	SystemID      string          `json:"system_id" binding:"required"`
	Token         string          `json:"token" binding:"required"`
	WorkflowID    string          `json:"workflow_id" binding:"required"`
	FunctionID    string          `json:"function_id" binding:"required"`
	UserID        string          `json:"user_id" binding:"required"`
	TokenMetadata json.RawMessage `json:"token_metadata,omitempty"`
}

type RecordTokenResponse struct {
	TokenID string `json:"token_id"`
	Status  string `json:"status"`
}

type InquiryRequest struct {
	SystemID string `json:"system_id" binding:"required"`
	UserID   string `json:"user_id" binding:"required"`
	Token    string `json:"token" binding:"required"`
}

type InquirySession struct {
	UserID     string    `json:"user_id"`
	SystemID   string    `json:"system_id"`
	WorkflowID string    `json:"workflow_id"`
	FunctionID string    `json:"function_id"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type InquiryResponse struct {
	SessionExists bool             `json:"session_exists"`
	Sessions      []InquirySession `json:"sessions"`
}

type CreateInstanceRequest struct {
	WorkflowID string          `json:"workflow_id" binding:"required"`
	UserID     string          `json:"user_id" binding:"required"`
	SessionID  string          `json:"session_id"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

type CreateInstanceResponse struct {
	InstanceID string `json:"instance_id"`
	WorkflowID string `json:"workflow_id"`
	Status     string `json:"status"`
}

type MarkStepRequest struct {
	InstanceID   string          `json:"instance_id" binding:"required"`
	FunctionID   string          `json:"function_id" binding:"required"`
	SystemID     string          `json:"system_id" binding:"required"`
	ResultData   json.RawMessage `json:"result_data,omitempty"`
	ErrorMessage string          `json:"error_message"`
}

type MarkStepResponse struct {
	Message    string `json:"message"`
	InstanceID string `json:"instance_id"`
	FunctionID string `json:"function_id"`
	StepID     string `json:"step_id"`
	Status     string `json:"status"`
}

type InstanceStatusResponse struct {
	WorkflowID string `json:"workflow_id"`
	types.StatusCounts
}

const (
	SyncModeCursor   = "cursor"
	SyncModeSnapshot = "snapshot"
)

// SyncRequest asks for the page after a cursor. LastTokenHash pins the
// position inside last_sync; without it the authority re-sends an overlap
// window before last_sync.
type SyncRequest struct {
	ReplicaID     string `json:"replica_id" binding:"required"`
	GroupID       string `json:"group_id" binding:"required"`
	AdminKey      string `json:"admin_key"`
	LastSync      string `json:"last_sync,omitempty"`
	LastTokenHash string `json:"last_token_hash,omitempty"`
}

// SyncCursor is a position in a group's tokens ordered by (created_at,
// token_hash). A cursor without TokenHash only knows a point in time.
type SyncCursor struct {
	At        time.Time
	TokenHash string
}

func (c SyncCursor) IsZero() bool { return c.At.IsZero() && c.TokenHash == "" }

// Exact reports whether the cursor names a token position.
func (c SyncCursor) Exact() bool { return c.TokenHash != "" }

// After orders cursors by time, then by token hash.
func (c SyncCursor) After(o SyncCursor) bool {
	if !c.At.Equal(o.At) {
		return c.At.After(o.At)
	}
	return c.TokenHash > o.TokenHash
}

// SyncBundle lists entities in apply order: every later list only references
// entities from earlier lists.
type SyncBundle struct {
	ReplicaID       string               `json:"replica_id"`
	GroupID         string               `json:"group_id"`
	SyncTimestamp   time.Time            `json:"sync_timestamp"`
	Mode            string               `json:"mode"`
	HasMore         bool                 `json:"has_more"`
	Systems         []types.System       `json:"systems"`
	SystemFunctions []types.Function     `json:"system_functions"`
	Workflows       []types.Workflow     `json:"workflows"`
	WorkflowEdges   []types.WorkflowEdge `json:"workflow_edges"`
	SharedTokens    []types.SharedToken  `json:"shared_tokens"`
}

type SessionInfo struct {
	UserID             string  `json:"user_id"`
	WorkflowID         string  `json:"workflow_id"`
	SessionID          *string `json:"session_id"`
	CreateLocalSession bool    `json:"create_local_session"`
}

type WorkflowStatus struct {
	TotalInstances      int64 `json:"total_instances"`
	CompletedInstances  int64 `json:"completed_instances"`
	InProgressInstances int64 `json:"in_progress_instances"`
	FailedInstances     int64 `json:"failed_instances"`
}

type NotificationMetadata struct {
	SentAt         time.Time       `json:"sent_at"`
	SourceSystemID string          `json:"source_system_id"`
	TokenMetadata  json.RawMessage `json:"token_metadata,omitempty"`
}

// SessionNotification is pushed to group members after a token is recorded.
type SessionNotification struct {
	TokenID              string               `json:"token_id" binding:"required"`
	SessionInfo          SessionInfo          `json:"session_info"`
	WorkflowStatus       WorkflowStatus       `json:"workflow_status"`
	NotificationMetadata NotificationMetadata `json:"notification_metadata"`
}

type NotificationAck struct {
	Message             string    `json:"message"`
	TokenID             string    `json:"token_id"`
	ProcessedAt         time.Time `json:"processed_at"`
	LocalSessionCreated bool      `json:"local_session_created"`
	LocalSessionID      string    `json:"local_session_id,omitempty"`
}

type NewSessionRequest struct {
	UserID string          `json:"user_id" binding:"required"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type NewSessionResponse struct {
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type RegisterTokenRequest struct {
	SessionID     string          `json:"session_id" binding:"required"`
	Token         string          `json:"token" binding:"required"`
	WorkflowID    string          `json:"workflow_id" binding:"required"`
	FunctionID    string          `json:"function_id" binding:"required"`
	SystemID      string          `json:"system_id" binding:"required"`
	TokenMetadata json.RawMessage `json:"token_metadata,omitempty"`
}

type RegisterTokenResponse struct {
	Message          string `json:"message"`
	AlohomoraTokenID string `json:"alohomora_token_id"`
}

// FunctionRequest asks a client application to run one of its functions on
// behalf of a user holding a shared token. SystemID defaults to the
// application's own system.
// FunctionRequest is always checked against the shared-session tiers.
// SessionID is accepted but never authorizes the call.
type FunctionRequest struct {
	SessionID  string `json:"session_id"`
	FunctionID string `json:"function_id"`
	Token      string `json:"token" binding:"required"`
	UserID     string `json:"user_id" binding:"required"`
	SystemID   string `json:"system_id"`
}

type FunctionResponse struct {
	Success    bool            `json:"success"`
	FunctionID string          `json:"function_id,omitempty"`
	Message    string          `json:"message"`
	Source     string          `json:"source"`
	UserID     string          `json:"user_id"`
	Result     json.RawMessage `json:"result"`
}

type HelloResponse struct {
	Message string `json:"message"`
}
