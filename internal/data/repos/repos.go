package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/alohomora/internal/data/repos/instances"
	"github.com/yungbote/alohomora/internal/data/repos/registry"
	"github.com/yungbote/alohomora/internal/data/repos/sessions"
	"github.com/yungbote/alohomora/internal/data/repos/tokens"
	"github.com/yungbote/alohomora/internal/platform/logger"
)

type GroupRepo = registry.GroupRepo
type SystemRepo = registry.SystemRepo
type FunctionRepo = registry.FunctionRepo
type WorkflowRepo = registry.WorkflowRepo

type SharedTokenRepo = tokens.SharedTokenRepo
type InquiryFilter = tokens.InquiryFilter

type InstanceRepo = instances.InstanceRepo
type StepRepo = instances.StepRepo

type SessionRepo = sessions.SessionRepo

// Registry groups the repositories shared by authority and replica.
type Registry struct {
	Group    GroupRepo
	System   SystemRepo
	Function FunctionRepo
	Workflow WorkflowRepo
	Token    SharedTokenRepo
	Instance InstanceRepo
	Step     StepRepo
}

func NewRegistry(db *gorm.DB, log *logger.Logger) Registry {
	return Registry{
		Group:    registry.NewGroupRepo(db, log),
		System:   registry.NewSystemRepo(db, log),
		Function: registry.NewFunctionRepo(db, log),
		Workflow: registry.NewWorkflowRepo(db, log),
		Token:    tokens.NewSharedTokenRepo(db, log),
		Instance: instances.NewInstanceRepo(db, log),
		Step:     instances.NewStepRepo(db, log),
	}
}

func NewSessionRepo(db *gorm.DB, log *logger.Logger) SessionRepo {
	return sessions.NewSessionRepo(db, log)
}
