package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/alohomora/internal/api"
	"github.com/yungbote/alohomora/internal/http/response"
	"github.com/yungbote/alohomora/internal/platform/apierr"
	"github.com/yungbote/alohomora/internal/services"
)

type RegistryHandler struct {
	graph services.GraphService
	admin services.AdminKey
}

func NewRegistryHandler(graph services.GraphService, admin services.AdminKey) *RegistryHandler {
	return &RegistryHandler{graph: graph, admin: admin}
}

// POST /register_group
func (h *RegistryHandler) RegisterGroup(c *gin.Context) {
	var req api.RegisterGroupRequest
	if err := bindJSON(c, &req); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if !h.admin.Verify(req.AdminKey) {
		response.RespondAPIError(c, apierr.Forbidden("invalid admin key"))
		return
	}
	g, err := h.graph.RegisterGroup(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, api.RegisterGroupResponse{GroupID: g.ID})
}

// POST /register_system
func (h *RegistryHandler) RegisterSystem(c *gin.Context) {
	var req api.RegisterSystemRequest
	if err := bindJSON(c, &req); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if !h.admin.Verify(req.AdminKey) {
		response.RespondAPIError(c, apierr.Forbidden("invalid admin key"))
		return
	}
	in := services.RegisterSystemInput{Name: req.SystemName, PublicKey: req.PublicKey}
	if req.GroupID != nil {
		in.GroupID = *req.GroupID
	}
	if req.CallbackURL != nil {
		in.CallbackURL = *req.CallbackURL
	}
	sys, err := h.graph.RegisterSystem(c.Request.Context(), in)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, api.RegisterSystemResponse{SystemID: sys.ID})
}

// POST /register_function
func (h *RegistryHandler) RegisterFunction(c *gin.Context) {
	var req api.RegisterFunctionRequest
	if err := bindJSON(c, &req); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	fn, err := h.graph.RegisterFunction(c.Request.Context(), req.SystemID, req.FunctionName, req.URL)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, api.RegisterFunctionResponse{FunctionID: fn.ID})
}

// POST /register_workflow
func (h *RegistryHandler) RegisterWorkflow(c *gin.Context) {
	var req api.RegisterWorkflowRequest
	if err := bindJSON(c, &req); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	wf, err := h.graph.RegisterWorkflow(c.Request.Context(), req.SystemID, req.WorkflowGraph)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, api.RegisterWorkflowResponse{WorkflowID: wf.ID})
}

// GET /system/:system_id
func (h *RegistryHandler) GetSystem(c *gin.Context) {
	sys, err := h.graph.GetSystem(c.Request.Context(), c.Param("system_id"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, api.NewSystemInfo(sys))
}

// GET /system/name/:system_name
func (h *RegistryHandler) GetSystemByName(c *gin.Context) {
	sys, err := h.graph.GetSystemByName(c.Request.Context(), c.Param("system_name"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, api.NewSystemInfo(sys))
}

// GET /workflow/:workflow_id/functions
func (h *RegistryHandler) WorkflowFunctions(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("workflow_id")
	ids, err := h.graph.FunctionsOfWorkflow(ctx, id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	edges, err := h.graph.WorkflowEdges(ctx, id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, api.WorkflowFunctionsResponse{WorkflowID: id, FunctionIDs: ids, Edges: edges})
}
