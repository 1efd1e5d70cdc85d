package instance

import (
	"time"

	"gorm.io/datatypes"
)

const (
	StatusCreated    = "created"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

const (
	StepPending   = "pending"
	StepCompleted = "completed"
	StepFailed    = "failed"
)

// WorkflowInstance is one execution attempt of a workflow for one user.
type WorkflowInstance struct {
	ID          string         `gorm:"column:instance_id;type:text;primaryKey" json:"instance_id"`
	WorkflowID  string         `gorm:"column:workflow_id;type:text;not null;index" json:"workflow_id"`
	UserID      string         `gorm:"column:user_id;type:text;not null;index" json:"user_id"`
	SessionID   *string        `gorm:"column:session_id;type:text" json:"session_id,omitempty"`
	Status      string         `gorm:"column:status;type:text;not null;index" json:"status"`
	CreatedAt   time.Time      `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;not null" json:"updated_at"`
	CompletedAt *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	Metadata    datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
}

func (WorkflowInstance) TableName() string { return "workflow_instances" }

// WorkflowInstanceStep is unique per (instance, function, system); a second
// report overwrites the first.
type WorkflowInstanceStep struct {
	ID           string         `gorm:"column:step_id;type:text;primaryKey" json:"step_id"`
	InstanceID   string         `gorm:"column:instance_id;type:text;not null;uniqueIndex:idx_instance_step_triple,priority:1" json:"instance_id"`
	FunctionID   string         `gorm:"column:function_id;type:text;not null;uniqueIndex:idx_instance_step_triple,priority:2" json:"function_id"`
	SystemID     string         `gorm:"column:system_id;type:text;not null;uniqueIndex:idx_instance_step_triple,priority:3" json:"system_id"`
	Status       string         `gorm:"column:status;type:text;not null" json:"status"`
	StartedAt    time.Time      `gorm:"column:started_at;not null" json:"started_at"`
	CompletedAt  *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	ResultData   datatypes.JSON `gorm:"column:result_data" json:"result_data,omitempty"`
	ErrorMessage *string        `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
}

func (WorkflowInstanceStep) TableName() string { return "workflow_instance_steps" }

// StatusCounts aggregates instances of one workflow by status.
type StatusCounts struct {
	Total      int64 `json:"total_instances"`
	Completed  int64 `json:"completed_instances"`
	InProgress int64 `json:"in_progress_instances"`
	Failed     int64 `json:"failed_instances"`
}
