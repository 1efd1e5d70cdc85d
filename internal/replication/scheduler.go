package replication

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yungbote/alohomora/internal/platform/logger"
)

// Scheduler runs the syncer on a fixed interval. A tick that fires while the
// previous cycle is still running is skipped.
type Scheduler struct {
	cron     *cron.Cron
	syncer   *Syncer
	interval time.Duration
	log      *logger.Logger
}

func NewScheduler(syncer *Syncer, interval time.Duration, baseLog *logger.Logger) (*Scheduler, error) {
	if syncer == nil {
		return nil, fmt.Errorf("syncer required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("sync interval must be positive")
	}
	log := baseLog.With("service", "SyncScheduler")
	cl := cronLogger{log: log}
	s := &Scheduler{
		cron:     cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)), cron.WithLogger(cl)),
		syncer:   syncer,
		interval: interval,
		log:      log,
	}
	return s, nil
}

// Run blocks until ctx is done. The first cycle runs immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("schedule sync: %w", err)
	}
	s.tick(ctx)
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.syncer.RunOnce(ctx); err != nil {
		if errors.Is(err, ErrCycleInProgress) {
			s.log.Debug("Sync cycle skipped", "reason", err.Error())
			return
		}
		s.log.Warn("Sync cycle failed", "error", err)
	}
}

type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
