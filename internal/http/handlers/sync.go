package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/alohomora/internal/api"
	"github.com/yungbote/alohomora/internal/http/response"
	"github.com/yungbote/alohomora/internal/platform/apierr"
	"github.com/yungbote/alohomora/internal/services"
)

// SyncHandler serves replica bundles. Bundles carry raw token ids, so every
// request must present the admin key.
type SyncHandler struct {
	sync  services.SyncService
	admin services.AdminKey
}

func NewSyncHandler(sync services.SyncService, admin services.AdminKey) *SyncHandler {
	return &SyncHandler{sync: sync, admin: admin}
}

// POST /replica_sync
func (h *SyncHandler) ReplicaSync(c *gin.Context) {
	var req api.SyncRequest
	if err := bindJSON(c, &req); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if !h.admin.Verify(req.AdminKey) {
		response.RespondAPIError(c, apierr.Forbidden("invalid admin key"))
		return
	}
	bundle, err := h.sync.Build(c.Request.Context(), req)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, bundle)
}
