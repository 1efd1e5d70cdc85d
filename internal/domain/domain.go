package domain

import (
	"github.com/yungbote/alohomora/internal/domain/instance"
	"github.com/yungbote/alohomora/internal/domain/registry"
	"github.com/yungbote/alohomora/internal/domain/session"
	"github.com/yungbote/alohomora/internal/domain/token"
)

const (
	InstanceStatusCreated    = instance.StatusCreated
	InstanceStatusInProgress = instance.StatusInProgress
	InstanceStatusCompleted  = instance.StatusCompleted
	InstanceStatusFailed     = instance.StatusFailed

	StepStatusPending   = instance.StepPending
	StepStatusCompleted = instance.StepCompleted
	StepStatusFailed    = instance.StepFailed
)

type (
	Group        = registry.Group
	System       = registry.System
	Function     = registry.Function
	Workflow     = registry.Workflow
	WorkflowEdge = registry.WorkflowEdge
	Graph        = registry.Graph
	Vertex       = registry.Vertex

	SharedToken = token.SharedToken

	WorkflowInstance     = instance.WorkflowInstance
	WorkflowInstanceStep = instance.WorkflowInstanceStep
	StatusCounts         = instance.StatusCounts

	Session = session.Session
)

var (
	SharedTokenHash    = token.Hash
	ParseGraphDocument = registry.ParseGraph
)

const (
	DefaultTokenTTL   = token.DefaultTTL
	DefaultSessionTTL = session.DefaultTTL
)

// AuthorityModels are migrated by the authority and by replicas.
func AuthorityModels() []any {
	return []any{
		&Group{},
		&System{},
		&Function{},
		&Workflow{},
		&SharedToken{},
		&WorkflowInstance{},
		&WorkflowInstanceStep{},
	}
}

// ClientModels are migrated by client applications.
func ClientModels() []any {
	return []any{&Session{}}
}
