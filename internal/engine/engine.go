// Package engine serializes every store mutation on one goroutine and wires
// the transports, the status machine and the bus around it.
package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/wachat/internal/bus"
	"github.com/matheus3301/wachat/internal/message"
	"github.com/matheus3301/wachat/internal/metrics"
	"github.com/matheus3301/wachat/internal/projection"
	"github.com/matheus3301/wachat/internal/reconcile"
	"github.com/matheus3301/wachat/internal/status"
	"github.com/matheus3301/wachat/internal/transport/push"
)

// ErrStopped is returned for work submitted after Stop.
var ErrStopped = errors.New("engine stopped")

// Fetcher returns the backend's full message set.
type Fetcher interface {
	FetchAll(ctx context.Context) ([]message.Record, error)
}

type job struct {
	reason string
	fn     func(*reconcile.Store)
}

// Engine owns the reconciliation store. Jobs run one at a time in FIFO
// order on the engine goroutine, so the store is never touched
// concurrently.
type Engine struct {
	store     *reconcile.Store
	fetcher   Fetcher
	projector *projection.Projector
	bus       *bus.Bus
	status    *status.Machine
	metrics   *metrics.Metrics
	logger    *zap.Logger

	jobs     chan job
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	started  atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc

	pushUp    atomic.Bool
	connected atomic.Bool
}

// Config holds the engine's collaborators. Only Fetcher and Projector are
// required.
type Config struct {
	Fetcher   Fetcher
	Projector *projection.Projector
	Bus       *bus.Bus
	Status    *status.Machine
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
	QueueSize int
}

// New creates an engine with an empty store.
func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Bus == nil {
		cfg.Bus = bus.New()
	}
	if cfg.Status == nil {
		cfg.Status = status.NewMachine(cfg.Bus)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		store:     reconcile.New(),
		fetcher:   cfg.Fetcher,
		projector: cfg.Projector,
		bus:       cfg.Bus,
		status:    cfg.Status,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		jobs:      make(chan job, cfg.QueueSize),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the engine goroutine. With initialSync it also runs the
// first bulk fetch in the background.
func (e *Engine) Start(initialSync bool) {
	if !e.started.CompareAndSwap(false, true) {
		return
	}
	go e.loop()
	if !initialSync {
		return
	}
	e.setStatus(status.Fetching)
	go func() {
		_ = e.Resync(e.ctx)
	}()
}

// Stop tears the engine down. Jobs still queued are discarded and later
// submissions fail with ErrStopped.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.cancel()
		close(e.quit)
		if e.started.Load() {
			<-e.done
		}
		e.setStatus(status.Stopped)
		e.logger.Info("engine stopped")
	})
}

func (e *Engine) loop() {
	defer close(e.done)
	for {
		select {
		case <-e.quit:
			return
		case j := <-e.jobs:
			select {
			case <-e.quit:
				return
			default:
			}
			e.run(j)
		}
	}
}

func (e *Engine) run(j job) {
	before := e.store.Version()
	j.fn(e.store)
	after := e.store.Version()
	if after == before {
		return
	}
	e.metrics.SetStoreSize(e.store.Len())
	e.publishChanged(after, j.reason)
}

func (e *Engine) publishChanged(version uint64, reason string) {
	e.bus.Publish(bus.Event{
		Kind:      bus.KindStoreChanged,
		Timestamp: time.Now(),
		Payload:   bus.StoreChanged{Version: version, Reason: reason},
	})
}

// Reproject drops the cached projection and announces a store change
// without mutating the store. It is called when display names change.
func (e *Engine) Reproject() error {
	return e.submit("directory", func(s *reconcile.Store) {
		e.projector.Invalidate()
		e.publishChanged(s.Version(), "directory")
	})
}

func (e *Engine) stopped() bool {
	select {
	case <-e.quit:
		return true
	default:
		return false
	}
}

func (e *Engine) submit(reason string, fn func(*reconcile.Store)) error {
	if e.stopped() {
		return ErrStopped
	}
	select {
	case e.jobs <- job{reason: reason, fn: fn}:
		return nil
	case <-e.quit:
		return ErrStopped
	}
}

// Post queues fn without waiting for it to run.
func (e *Engine) Post(fn func(*reconcile.Store)) error {
	return e.submit("post", fn)
}

// Do queues fn and waits until it has run.
func (e *Engine) Do(ctx context.Context, fn func(*reconcile.Store)) error {
	return e.do(ctx, "do", fn)
}

// Job states used by do.
const (
	jobQueued int32 = iota
	jobRunning
	jobAbandoned
)

// do queues fn and waits for it. If ctx ends or the engine stops while fn
// is still queued, fn is abandoned and never runs; once it has started it
// always runs to completion and do reports success.
func (e *Engine) do(ctx context.Context, reason string, fn func(*reconcile.Store)) error {
	var state atomic.Int32
	finished := make(chan struct{})
	err := e.submit(reason, func(s *reconcile.Store) {
		if !state.CompareAndSwap(jobQueued, jobRunning) {
			return
		}
		defer close(finished)
		fn(s)
	})
	if err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-e.quit:
		if state.CompareAndSwap(jobQueued, jobAbandoned) {
			return ErrStopped
		}
		<-finished
		return nil
	case <-ctx.Done():
		if state.CompareAndSwap(jobQueued, jobAbandoned) {
			return ctx.Err()
		}
		<-finished
		return nil
	}
}

// View returns the current projection. The result must not be modified.
func (e *Engine) View(ctx context.Context) ([]projection.Conversation, error) {
	var out []projection.Conversation
	err := e.do(ctx, "view", func(s *reconcile.Store) {
		out = e.projector.View(s)
	})
	return out, err
}

// Resync fetches the full message set and merges it. A fetch failure
// leaves the store untouched.
func (e *Engine) Resync(ctx context.Context) error {
	if e.fetcher == nil {
		return nil
	}
	recs, err := e.fetcher.FetchAll(ctx)
	if err != nil {
		if e.stopped() {
			return ErrStopped
		}
		e.logger.Warn("bulk fetch failed, keeping current messages", zap.Error(err))
		e.setStatus(status.Degraded)
		return err
	}
	err = e.do(ctx, "bulk", func(s *reconcile.Store) {
		res := s.Merge(message.SourceBulk, recs)
		e.metrics.ObserveMerge(string(message.SourceBulk), res)
		e.logger.Info("bulk fetch merged",
			zap.Int("inserted", res.Inserted),
			zap.Int("updated", res.Updated),
			zap.Int("unchanged", res.Unchanged),
			zap.Int("skipped", res.Skipped),
		)
	})
	if err != nil {
		return err
	}
	switch e.status.Current() {
	case status.Booting, status.Fetching, status.Degraded:
		if e.pushUp.Load() {
			e.setStatus(status.Live)
		} else {
			e.setStatus(status.Connecting)
		}
	}
	return nil
}

// HandlePush queues one push event. It does not wait for the event to be
// applied.
func (e *Engine) HandlePush(evt push.Event) {
	e.metrics.ObservePush(string(evt.Kind))
	switch evt.Kind {
	case push.KindNewMessage:
		rec := evt.Record
		e.post("push", func(s *reconcile.Store) {
			res := s.Merge(message.SourcePush, []message.Record{rec})
			e.metrics.ObserveMerge(string(message.SourcePush), res)
		})
	case push.KindStatusUpdate:
		id, st := evt.ID, evt.Status
		e.post("status", func(s *reconcile.Store) {
			if !s.UpdateStatus(id, st) {
				e.logger.Debug("status update for unknown message", zap.String("msg_id", id))
			}
		})
	case push.KindDeleteMessage:
		id := evt.ID
		e.post("delete", func(s *reconcile.Store) {
			if _, ok := s.Remove(id); !ok {
				e.logger.Debug("delete for unknown message", zap.String("msg_id", id))
			}
		})
	case push.KindConnected:
		e.pushUp.Store(true)
		switch e.status.Current() {
		case status.Connecting, status.Reconnecting:
			e.setStatus(status.Live)
		}
		// Events missed while offline are recovered by a full fetch.
		if e.connected.Swap(true) {
			go func() {
				_ = e.Resync(e.ctx)
			}()
		}
	case push.KindDisconnected:
		e.pushUp.Store(false)
		switch e.status.Current() {
		case status.Live, status.Connecting:
			e.setStatus(status.Reconnecting)
		}
	default:
		e.logger.Debug("ignoring push event", zap.String("kind", string(evt.Kind)))
	}
}

func (e *Engine) post(reason string, fn func(*reconcile.Store)) {
	if err := e.submit(reason, fn); err != nil {
		e.logger.Debug("dropping push event", zap.String("reason", reason), zap.Error(err))
	}
}

// Status returns the current client state.
func (e *Engine) Status() status.State {
	return e.status.Current()
}

func (e *Engine) setStatus(to status.State) {
	if err := e.status.Ensure(to); err != nil {
		e.logger.Debug("status transition skipped", zap.Error(err))
	}
}
