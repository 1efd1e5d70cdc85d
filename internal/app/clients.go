package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/alohomora/internal/clients/alohomora"
	"github.com/yungbote/alohomora/internal/config"
	"github.com/yungbote/alohomora/internal/platform/logger"
	"github.com/yungbote/alohomora/internal/replication"
)

type Clients struct {
	// Authority is the upstream authority, used by replicas and client apps.
	Authority alohomora.Client
	// Replica is the client app's preferred inquiry target.
	Replica alohomora.Client
	// Notifications posts fan-out payloads to member callback URLs.
	Notifications alohomora.NotificationSender
	Redis         *goredis.Client
}

func wireClients(ctx context.Context, log *logger.Logger, role string, cfg config.Config) (Clients, error) {
	log.Info("Wiring clients...", "role", role)
	var out Clients

	switch role {
	case config.RoleAuthority:
		out.Notifications = alohomora.NewNotificationSender(cfg.Authority.NotifyTimeout)

	case config.RoleReplica:
		authority, err := alohomora.New(log, alohomora.Config{
			BaseURL:  cfg.Replica.AuthorityURL,
			Timeout:  cfg.Replica.AuthorityTimeout,
			AdminKey: cfg.Replica.SyncKey(cfg.Authority.AdminKey),
		})
		if err != nil {
			return Clients{}, fmt.Errorf("init authority client: %w", err)
		}
		out.Authority = authority

		if cfg.Replica.UsesRedis() {
			rdb, err := replication.NewRedisClient(ctx, cfg.Replica.RedisURL)
			if err != nil {
				return Clients{}, fmt.Errorf("init redis: %w", err)
			}
			out.Redis = rdb
		}

	case config.RoleApp:
		if cfg.App.AuthorityURL != "" {
			authority, err := alohomora.New(log, alohomora.Config{
				BaseURL: cfg.App.AuthorityURL,
				Timeout: cfg.App.AuthorityTimeout,
			})
			if err != nil {
				return Clients{}, fmt.Errorf("init authority client: %w", err)
			}
			out.Authority = authority
		}
		if cfg.App.ReplicaURL != "" {
			replica, err := alohomora.New(log, alohomora.Config{
				BaseURL: cfg.App.ReplicaURL,
				Timeout: cfg.App.ReplicaTimeout,
			})
			if err != nil {
				return Clients{}, fmt.Errorf("init replica client: %w", err)
			}
			out.Replica = replica
		}
	}
	return out, nil
}
