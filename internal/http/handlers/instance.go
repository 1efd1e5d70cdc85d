package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/alohomora/internal/api"
	"github.com/yungbote/alohomora/internal/http/response"
	"github.com/yungbote/alohomora/internal/services"
)

type InstanceHandler struct {
	instances services.InstanceService
}

func NewInstanceHandler(instances services.InstanceService) *InstanceHandler {
	return &InstanceHandler{instances: instances}
}

// POST /create_workflow_instance
func (h *InstanceHandler) CreateInstance(c *gin.Context) {
	var req api.CreateInstanceRequest
	if err := bindJSON(c, &req); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	inst, err := h.instances.Create(c.Request.Context(), services.CreateInstanceInput{
		WorkflowID: req.WorkflowID,
		UserID:     req.UserID,
		SessionID:  req.SessionID,
		Metadata:   req.Metadata,
	})
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, api.CreateInstanceResponse{
		InstanceID: inst.ID,
		WorkflowID: inst.WorkflowID,
		Status:     inst.Status,
	})
}

// POST /mark_step_completion
func (h *InstanceHandler) MarkStep(c *gin.Context) {
	var req api.MarkStepRequest
	if err := bindJSON(c, &req); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	step, err := h.instances.MarkStep(c.Request.Context(), services.MarkStepInput{
		InstanceID:   req.InstanceID,
		FunctionID:   req.FunctionID,
		SystemID:     req.SystemID,
		ResultData:   req.ResultData,
		ErrorMessage: req.ErrorMessage,
	})
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, api.MarkStepResponse{
		Message:    "step recorded",
		InstanceID: step.InstanceID,
		FunctionID: step.FunctionID,
		StepID:     step.ID,
		Status:     step.Status,
	})
}

// GET /workflow/:workflow_id/status
func (h *InstanceHandler) WorkflowStatus(c *gin.Context) {
	id := c.Param("workflow_id")
	counts, err := h.instances.Status(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, api.InstanceStatusResponse{WorkflowID: id, StatusCounts: *counts})
}
