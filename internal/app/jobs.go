package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yungbote/alohomora/internal/platform/logger"
	"github.com/yungbote/alohomora/internal/services"
)

// sessionPurger drops expired client sessions on a fixed interval.
type sessionPurger struct {
	cron     *cron.Cron
	sessions services.SessionService
	interval time.Duration
	log      *logger.Logger
}

func newSessionPurger(sessions services.SessionService, interval time.Duration, baseLog *logger.Logger) *sessionPurger {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &sessionPurger{
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		sessions: sessions,
		interval: interval,
		log:      baseLog.With("job", "SessionPurge"),
	}
}

func (p *sessionPurger) Run(ctx context.Context) error {
	if _, err := p.cron.AddFunc(fmt.Sprintf("@every %s", p.interval), func() { p.purge(ctx) }); err != nil {
		return fmt.Errorf("schedule session purge: %w", err)
	}
	p.cron.Start()
	<-ctx.Done()
	<-p.cron.Stop().Done()
	return nil
}

func (p *sessionPurger) purge(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	n, err := p.sessions.PurgeExpired(ctx)
	if err != nil {
		p.log.Warn("Session purge failed", "error", err)
		return
	}
	if n > 0 {
		p.log.Info("Purged expired sessions", "count", n)
	}
}
