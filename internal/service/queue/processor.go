package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/dispatch-engine/internal/domain"
	"github.com/ignite/dispatch-engine/internal/pkg/distlock"
	"github.com/ignite/dispatch-engine/internal/pkg/logger"
	"github.com/ignite/dispatch-engine/internal/service/dispatch"
	"github.com/ignite/dispatch-engine/internal/service/stats"
)

const (
	// DefaultPollInterval is how often the processor looks for due items.
	DefaultPollInterval = 60 * time.Second

	// DefaultLease is how long a claim lasts without renewal.
	DefaultLease = time.Hour

	// DefaultMaxItemsPerTick bounds the work done under one poll lock.
	DefaultMaxItemsPerTick = 50

	// PollLockKey names the lock that serializes poll ticks.
	PollLockKey = "dispatch:queue-poll"
)

// Recorder applies batch results to stats and history.
type Recorder interface {
	Record(ctx context.Context, ref stats.BatchRef, results []domain.SendResult) (*domain.HistoryRecord, error)
}

// Notifier receives the results of every recorded batch. Implementations
// must not block.
type Notifier interface {
	Notify(ctx context.Context, results []domain.SendResult)
}

// AutoProcess reports whether the periodic poll should run.
type AutoProcess interface {
	AutoProcessQueue(ctx context.Context) (bool, error)
}

// ProcessorConfig holds the processor's timing.
type ProcessorConfig struct {
	Owner           string
	PollInterval    time.Duration
	Lease           time.Duration
	MaxItemsPerTick int
}

// Processor runs due queue items through the dispatcher.
type Processor struct {
	repo       Repository
	dispatcher *dispatch.Dispatcher
	recorder   Recorder
	notifier   Notifier
	auto       AutoProcess
	lock       distlock.DistLock

	owner    string
	interval time.Duration
	lease    time.Duration
	maxItems int
	now      func() time.Time

	// Stats
	completed int64
	failed    int64

	// Control
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewProcessor creates a processor. Zero config values take the defaults.
// Without SetLock the poll tick is serialized only within this process.
func NewProcessor(repo Repository, dispatcher *dispatch.Dispatcher, recorder Recorder, cfg ProcessorConfig) *Processor {
	if cfg.Owner == "" {
		host, _ := os.Hostname()
		cfg.Owner = fmt.Sprintf("processor-%s-%s", host, uuid.New().String()[:8])
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Lease <= 0 {
		cfg.Lease = DefaultLease
	}
	if cfg.MaxItemsPerTick <= 0 {
		cfg.MaxItemsPerTick = DefaultMaxItemsPerTick
	}
	return &Processor{
		repo:       repo,
		dispatcher: dispatcher,
		recorder:   recorder,
		lock:       distlock.NewLocalLock(PollLockKey),
		owner:      cfg.Owner,
		interval:   cfg.PollInterval,
		lease:      cfg.Lease,
		maxItems:   cfg.MaxItemsPerTick,
		now:        time.Now,
	}
}

// SetNotifier sets the external sync notifier.
func (p *Processor) SetNotifier(n Notifier) { p.notifier = n }

// SetAutoProcess sets the source of the auto-process flag. Without one the
// periodic poll always runs.
func (p *Processor) SetAutoProcess(a AutoProcess) { p.auto = a }

// SetLock replaces the poll lock, typically with distlock.NewLock so that
// several processes share it.
func (p *Processor) SetLock(l distlock.DistLock) { p.lock = l }

// Owner returns the id this processor claims items with.
func (p *Processor) Owner() string { return p.owner }

// Start begins the polling loop.
func (p *Processor) Start() error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("queue processor already running")
	}
	p.running = true
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.mu.Unlock()

	logger.Info("queue processor starting",
		"owner", p.owner,
		"poll_interval", p.interval,
		"lease", p.lease)

	p.wg.Add(1)
	go p.loop()
	return nil
}

// Stop ends the polling loop. An item already being processed runs to
// completion first.
func (p *Processor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
	logger.Info("queue processor stopped",
		"completed", atomic.LoadInt64(&p.completed),
		"failed", atomic.LoadInt64(&p.failed))
}

func (p *Processor) loop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.Poll(p.ctx); err != nil {
				logger.Error("queue poll failed", "error", err)
			}
		}
	}
}

// Poll runs one Tick if auto-processing is enabled.
func (p *Processor) Poll(ctx context.Context) (int, error) {
	if p.auto != nil {
		on, err := p.auto.AutoProcessQueue(ctx)
		if err != nil {
			return 0, &PersistenceError{Op: "read settings", Err: err}
		}
		if !on {
			return 0, nil
		}
	}
	return p.Tick(ctx)
}

// Tick fails expired claims, then claims and processes due items one at a
// time until none are left or the per-tick limit is reached. It returns
// the number of items processed.
func (p *Processor) Tick(ctx context.Context) (int, error) {
	ok, err := p.lock.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire poll lock: %w", err)
	}
	if !ok {
		logger.Debug("queue poll skipped, another tick holds the lock")
		return 0, nil
	}
	defer func() {
		if err := p.lock.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("release poll lock failed", "error", err)
		}
	}()

	expired, err := p.repo.ExpireLeases(ctx, p.now().UTC())
	if err != nil {
		return 0, &PersistenceError{Op: "expire leases", Err: err}
	}
	for _, id := range expired {
		atomic.AddInt64(&p.failed, 1)
		logger.Warn("queue item lease expired", "queue_id", id)
	}

	n := 0
	for n < p.maxItems {
		if ctx.Err() != nil {
			break
		}
		item, err := p.repo.ClaimNext(ctx, p.owner, p.now().UTC(), p.lease)
		if err != nil {
			return n, &PersistenceError{Op: "claim item", Err: err}
		}
		if item == nil {
			break
		}
		p.process(ctx, item)
		n++
		p.extendLock(ctx)
	}
	return n, nil
}

// process runs one claimed item to a terminal state. Cancelling ctx does
// not interrupt it.
func (p *Processor) process(ctx context.Context, item *domain.QueueItem) {
	ctx = context.WithoutCancel(ctx)
	logger.Info("processing queue item",
		"queue_id", item.ID,
		"domain_id", item.DomainID,
		"contacts", domain.ContactCount(item.Assignments))

	b, err := p.dispatcher.Load(ctx, item.DomainID, item.TemplateID)
	if err != nil {
		if !domain.IsValidation(err) {
			err = &PersistenceError{Op: "load batch", Err: err}
		}
		p.finish(ctx, item, nil, err)
		return
	}

	stop := p.heartbeat(ctx, item.ID)
	results, err := p.dispatcher.Dispatch(ctx, b, item.Assignments, p.renewLease(item.ID))
	stop()
	if err != nil && !errors.Is(err, ErrLeaseLost) {
		var pe *PersistenceError
		if !errors.As(err, &pe) {
			err = &PersistenceError{Op: "dispatch", Err: err}
		}
	}

	// Whatever was sent is recorded, even when the batch stopped early.
	if err == nil || len(results) > 0 {
		ref := stats.BatchRef{DomainID: item.DomainID, TemplateID: item.TemplateID, QueueID: item.ID}
		if _, rerr := p.recorder.Record(ctx, ref, results); rerr != nil {
			logger.Error("record queue results failed", "queue_id", item.ID, "error", rerr)
			if err == nil {
				err = &PersistenceError{Op: "record results", Err: rerr}
			}
		} else if p.notifier != nil {
			p.notifier.Notify(ctx, results)
		}
	}

	p.finish(ctx, item, results, err)
}

func (p *Processor) finish(ctx context.Context, item *domain.QueueItem, results []domain.SendResult, cause error) {
	out := Outcome{
		Status:      domain.QueueCompleted,
		Results:     results,
		CompletedAt: p.now().UTC(),
	}
	if cause != nil {
		out.Status = domain.QueueFailed
		out.Error = cause.Error()
	}

	if err := p.repo.Finish(ctx, item.ID, p.owner, out); err != nil {
		logger.Error("finalize queue item failed",
			"queue_id", item.ID,
			"status", string(out.Status),
			"error", err)
		return
	}

	sent, fails := domain.Tally(results)
	if cause != nil {
		atomic.AddInt64(&p.failed, 1)
		logger.Warn("queue item failed",
			"queue_id", item.ID,
			"sent", sent,
			"failed", fails,
			"error", cause)
		return
	}
	atomic.AddInt64(&p.completed, 1)
	logger.Info("queue item completed", "queue_id", item.ID, "sent", sent, "failed", fails)
}

func (p *Processor) renewLease(id string) dispatch.AfterAssignment {
	return func(ctx context.Context, _ int, _ []domain.SendResult) error {
		until := p.now().UTC().Add(p.lease)
		err := p.repo.ExtendLease(ctx, id, p.owner, until)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrLeaseLost):
			return err
		default:
			return &PersistenceError{Op: "extend lease", Err: err}
		}
	}
}

// heartbeat keeps the claim and the poll lock alive while a batch is being
// sent, since a single assignment can outlast the lease. The returned func
// stops it and waits for the last renewal to finish.
func (p *Processor) heartbeat(ctx context.Context, id string) func() {
	every := p.lease / 3
	if every < time.Millisecond {
		every = time.Millisecond
	}
	done := make(chan struct{})
	exited := make(chan struct{})

	go func() {
		defer close(exited)
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				until := p.now().UTC().Add(p.lease)
				err := p.repo.ExtendLease(ctx, id, p.owner, until)
				if errors.Is(err, ErrLeaseLost) {
					logger.Warn("queue item lease lost during dispatch", "queue_id", id)
					return
				}
				if err != nil {
					logger.Warn("renew queue lease failed", "queue_id", id, "error", err)
				}
				p.extendLock(ctx)
			}
		}
	}()

	return func() {
		close(done)
		<-exited
	}
}

func (p *Processor) extendLock(ctx context.Context) {
	ext, ok := p.lock.(interface {
		Extend(ctx context.Context, ttl time.Duration) error
	})
	if !ok {
		return
	}
	if err := ext.Extend(ctx, p.lease); err != nil {
		logger.Warn("extend poll lock failed", "error", err)
	}
}
