package app

import (
	"fmt"

	"gorm.io/gorm"
	"k8s.io/utils/clock"

	"github.com/yungbote/alohomora/internal/config"
	"github.com/yungbote/alohomora/internal/data/db"
	"github.com/yungbote/alohomora/internal/notify"
	"github.com/yungbote/alohomora/internal/platform/logger"
	"github.com/yungbote/alohomora/internal/services"
)

type Services struct {
	Admin services.AdminKey

	Graph    services.GraphService
	Inquiry  services.InquiryService
	Token    services.TokenService
	Instance services.InstanceService
	Sync     services.SyncService

	ReplicaApply services.ReplicaApplyService

	Session    services.SessionService
	Validation services.ValidationService

	Dispatcher *notify.Dispatcher
}

func wireServices(theDB *gorm.DB, log *logger.Logger, role string, cfg config.Config, reposet Repos, clients Clients, clk clock.PassiveClock) (Services, error) {
	log.Info("Wiring services...", "role", role)
	var out Services

	switch role {
	case config.RoleAuthority:
		ac := cfg.Authority
		out.Admin = services.NewAdminKey(ac.AdminKey)
		out.Graph = services.NewGraphService(reposet.Registry, clk, log)
		out.Inquiry = services.NewInquiryService(reposet.Registry.Token, ac.InquiryFreshness, clk, log)
		out.Instance = services.NewInstanceService(reposet.Registry, out.Graph, db.NewGormTxRunner(theDB), clk, log)
		out.Dispatcher = notify.NewDispatcher(notify.Config{
			Workers:       ac.NotifyWorkers,
			QueueSize:     ac.NotifyQueueSize,
			Fanout:        ac.NotifyFanout,
			TargetTimeout: ac.NotifyTimeout,
		}, reposet.Registry.System, out.Instance, clients.Notifications, clk, log)
		out.Token = services.NewTokenService(reposet.Registry, out.Graph, out.Dispatcher, ac.TokenTTL, clk, log)
		out.Sync = services.NewSyncService(reposet.Registry, services.SyncConfig{
			Mode:    ac.SyncMode,
			Limit:   ac.SyncLimit,
			Overlap: ac.SyncOverlap,
		}, clk, log)

	case config.RoleReplica:
		out.Admin = services.NewAdminKey(cfg.Authority.AdminKey)
		out.Graph = services.NewGraphService(reposet.Registry, clk, log)
		out.Inquiry = services.NewInquiryService(reposet.Registry.Token, cfg.Authority.InquiryFreshness, clk, log)
		out.ReplicaApply = services.NewReplicaApplyService(reposet.Registry, clk, log)

	case config.RoleApp:
		out.Session = services.NewSessionService(reposet.Session, cfg.App.SessionTTL, clk, log)
		var replica, authority services.InquiryClient
		if clients.Replica != nil {
			replica = clients.Replica
		}
		if clients.Authority != nil {
			authority = clients.Authority
		}
		out.Validation = services.NewValidationService(replica, authority, log)

	default:
		return Services{}, fmt.Errorf("unknown role %q", role)
	}
	return out, nil
}
