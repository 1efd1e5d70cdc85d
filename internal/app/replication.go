package app

import (
	"fmt"

	"k8s.io/utils/clock"

	"github.com/yungbote/alohomora/internal/config"
	"github.com/yungbote/alohomora/internal/platform/logger"
	"github.com/yungbote/alohomora/internal/replication"
)

type Replication struct {
	Syncer    *replication.Syncer
	Scheduler *replication.Scheduler
}

func wireReplication(log *logger.Logger, cfg config.Config, svc Services, clients Clients, clk clock.PassiveClock) (Replication, error) {
	log.Info("Wiring replica sync...")
	rc := cfg.Replica

	var store replication.CheckpointStore
	switch rc.CheckpointStore {
	case config.BackendRedis:
		store = replication.NewRedisCheckpointStore(clients.Redis)
	default:
		store = replication.NewFileCheckpointStore(rc.CheckpointDir)
	}

	lockers := []replication.Locker{replication.NewLocalLocker()}
	if rc.LockBackend == config.BackendRedis {
		lockers = append(lockers, replication.NewRedisLocker(clients.Redis, rc.LockTTL))
	}

	syncer, err := replication.NewSyncer(replication.SyncerConfig{
		ReplicaID: rc.ReplicaID,
		GroupID:   rc.GroupID,
		MaxPages:  rc.SyncMaxPages,
	}, clients.Authority, svc.ReplicaApply, store, replication.ChainLockers(lockers...), clk, log)
	if err != nil {
		return Replication{}, fmt.Errorf("init syncer: %w", err)
	}
	scheduler, err := replication.NewScheduler(syncer, rc.SyncInterval, log)
	if err != nil {
		return Replication{}, fmt.Errorf("init sync scheduler: %w", err)
	}
	return Replication{Syncer: syncer, Scheduler: scheduler}, nil
}
