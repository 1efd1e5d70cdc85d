package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/yungbote/alohomora/internal/api"
	"github.com/yungbote/alohomora/internal/clients/alohomora"
	"github.com/yungbote/alohomora/internal/data/repos"
	types "github.com/yungbote/alohomora/internal/domain"
	"github.com/yungbote/alohomora/internal/platform/dbctx"
	"github.com/yungbote/alohomora/internal/platform/logger"
)

// TokenRecorded is the immutable event handed from the recording request to
// the dispatcher.
type TokenRecorded struct {
	TokenID        string
	SourceSystemID string
	GroupID        string
	WorkflowID     string
	UserID         string
	TokenMetadata  json.RawMessage
}

// StatusSource reports instance counts for a workflow.
type StatusSource interface {
	Status(ctx context.Context, workflowID string) (*types.StatusCounts, error)
}

type Config struct {
	Workers       int
	QueueSize     int
	Fanout        int
	TargetTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers < 1 {
		c.Workers = 2
	}
	if c.QueueSize < 1 {
		c.QueueSize = 256
	}
	if c.Fanout < 1 {
		c.Fanout = 8
	}
	if c.TargetTimeout <= 0 {
		c.TargetTimeout = 5 * time.Second
	}
	return c
}

// Dispatcher delivers token notifications at most once on a bounded worker
// pool. Submit never blocks; events are dropped when the queue is full or the
// dispatcher is stopped.
type Dispatcher struct {
	cfg     Config
	systems repos.SystemRepo
	status  StatusSource
	sender  alohomora.NotificationSender
	clock   clock.PassiveClock
	log     *logger.Logger

	queue   chan TokenRecorded
	mu      sync.RWMutex
	running bool
	wg      sync.WaitGroup
}

func NewDispatcher(cfg Config, systems repos.SystemRepo, status StatusSource, sender alohomora.NotificationSender, clk clock.PassiveClock, baseLog *logger.Logger) *Dispatcher {
	cfg = cfg.withDefaults()
	return &Dispatcher{
		cfg:     cfg,
		systems: systems,
		status:  status,
		sender:  sender,
		clock:   clk,
		log:     baseLog.With("component", "NotificationDispatcher"),
		queue:   make(chan TokenRecorded, cfg.QueueSize),
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.running = true
	d.log.Info("Starting notification workers", "workers", d.cfg.Workers, "queue_size", d.cfg.QueueSize)
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.runLoop(ctx, i+1)
	}
	go func() {
		<-ctx.Done()
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
	}()
}

// Wait blocks until every worker has returned.
func (d *Dispatcher) Wait() { d.wg.Wait() }

func (d *Dispatcher) Submit(ev TokenRecorded) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.running {
		return false
	}
	select {
	case d.queue <- ev:
		return true
	default:
		d.log.Warn("Notification queue full, dropping event", "workflow_id", ev.WorkflowID)
		return false
	}
}

func (d *Dispatcher) runLoop(ctx context.Context, workerID int) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			d.log.Debug("Notification worker stopped", "worker_id", workerID)
			return
		case ev := <-d.queue:
			d.handle(ctx, workerID, ev)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, workerID int, ev TokenRecorded) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("Notification handler panic", "worker_id", workerID, "workflow_id", ev.WorkflowID, "panic", r)
		}
	}()
	sent, failed, err := d.Deliver(ctx, ev)
	if err != nil {
		d.log.Warn("Notification fan-out aborted", "workflow_id", ev.WorkflowID, "error", err)
		return
	}
	d.log.Info("Notification fan-out finished", "workflow_id", ev.WorkflowID, "sent", sent, "failed", failed)
}

// Deliver runs one fan-out synchronously and reports per-target outcomes.
func (d *Dispatcher) Deliver(ctx context.Context, ev TokenRecorded) (sent, failed int, err error) {
	targets, err := d.systems.ListCallbackTargets(dbctx.New(ctx), ev.GroupID, ev.SourceSystemID)
	if err != nil {
		return 0, 0, err
	}
	if len(targets) == 0 {
		return 0, 0, nil
	}

	payload := api.SessionNotification{
		TokenID: ev.TokenID,
		SessionInfo: api.SessionInfo{
			UserID:             ev.UserID,
			WorkflowID:         ev.WorkflowID,
			CreateLocalSession: true,
		},
		NotificationMetadata: api.NotificationMetadata{
			SentAt:         d.clock.Now().UTC(),
			SourceSystemID: ev.SourceSystemID,
			TokenMetadata:  ev.TokenMetadata,
		},
	}
	if d.status != nil {
		if counts, err := d.status.Status(ctx, ev.WorkflowID); err == nil && counts != nil {
			payload.WorkflowStatus = api.WorkflowStatus{
				TotalInstances:      counts.Total,
				CompletedInstances:  counts.Completed,
				InProgressInstances: counts.InProgress,
				FailedInstances:     counts.Failed,
			}
		} else if err != nil {
			d.log.Warn("Workflow status unavailable for notification", "workflow_id", ev.WorkflowID, "error", err)
		}
	}

	var (
		mu       sync.Mutex
		okCount  int
		errCount int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Fanout)
	for _, target := range targets {
		target := target
		g.Go(func() error {
			tctx, cancel := context.WithTimeout(gctx, d.cfg.TargetTimeout)
			defer cancel()
			err := d.sender.Send(tctx, derefString(target.CallbackURL), payload)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errCount++
				d.log.Warn("Notification delivery failed", "target_system_id", target.ID, "error", err)
				return nil
			}
			okCount++
			return nil
		})
	}
	_ = g.Wait()
	return okCount, errCount, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
