package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/alohomora/internal/config"
	apphttp "github.com/yungbote/alohomora/internal/http"
	"github.com/yungbote/alohomora/internal/platform/logger"
)

func wireRouter(log *logger.Logger, role string, cfg config.Config, handlers Handlers) *gin.Engine {
	rc := apphttp.RouterConfig{
		ServiceName:     cfg.Otel.ServiceName,
		Role:            role,
		Tracing:         cfg.Otel.Enabled,
		CORSOrigins:     cfg.CORSOrigins,
		Log:             log,
		HealthHandler:   handlers.Health,
		RegistryHandler: handlers.Registry,
		TokenHandler:    handlers.Token,
		InquiryHandler:  handlers.Inquiry,
		InstanceHandler: handlers.Instance,
		SyncHandler:     handlers.Sync,
		AppHandler:      handlers.App,
	}
	switch role {
	case config.RoleReplica:
		return apphttp.NewReplicaRouter(rc)
	case config.RoleApp:
		return apphttp.NewAppRouter(rc)
	default:
		return apphttp.NewAuthorityRouter(rc)
	}
}

func listenAddr(role string, cfg config.Config) string {
	switch role {
	case config.RoleReplica:
		return cfg.Replica.Addr
	case config.RoleApp:
		return cfg.App.Addr
	default:
		return cfg.Authority.Addr
	}
}
