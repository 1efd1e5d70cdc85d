package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/alohomora/internal/api"
)

type HealthHandler struct {
	role string
}

func NewHealthHandler(role string) *HealthHandler { return &HealthHandler{role: role} }

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// GET /hello
func (h *HealthHandler) Hello(c *gin.Context) {
	c.JSON(http.StatusOK, api.HelloResponse{Message: "Hello from the alohomora " + h.role + " service"})
}
