package app

import (
	"k8s.io/utils/clock"

	"github.com/yungbote/alohomora/internal/config"
	httpH "github.com/yungbote/alohomora/internal/http/handlers"
	"github.com/yungbote/alohomora/internal/platform/logger"
)

type Handlers struct {
	Health   *httpH.HealthHandler
	Registry *httpH.RegistryHandler
	Token    *httpH.TokenHandler
	Inquiry  *httpH.InquiryHandler
	Instance *httpH.InstanceHandler
	Sync     *httpH.SyncHandler
	App      *httpH.AppHandler
}

func wireHandlers(log *logger.Logger, role string, cfg config.Config, svc Services, clients Clients, clk clock.PassiveClock) Handlers {
	log.Info("Wiring handlers...", "role", role)
	out := Handlers{Health: httpH.NewHealthHandler(role)}

	switch role {
	case config.RoleAuthority:
		out.Registry = httpH.NewRegistryHandler(svc.Graph, svc.Admin)
		out.Token = httpH.NewTokenHandler(svc.Token)
		out.Inquiry = httpH.NewInquiryHandler(svc.Inquiry)
		out.Instance = httpH.NewInstanceHandler(svc.Instance)
		out.Sync = httpH.NewSyncHandler(svc.Sync, svc.Admin)
	case config.RoleReplica:
		out.Registry = httpH.NewRegistryHandler(svc.Graph, svc.Admin)
		out.Inquiry = httpH.NewInquiryHandler(svc.Inquiry)
	case config.RoleApp:
		var recorder httpH.TokenRecorder
		if clients.Authority != nil {
			recorder = clients.Authority
		}
		out.App = httpH.NewAppHandler(cfg.App.SystemID, svc.Session, recorder, svc.Validation, clk, log)
	}
	return out
}
