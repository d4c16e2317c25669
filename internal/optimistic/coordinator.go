// Package optimistic applies user sends and deletes to the store at once
// and reverts them when the durable write fails.
package optimistic

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheus3301/wachat/internal/bus"
	"github.com/matheus3301/wachat/internal/directory"
	"github.com/matheus3301/wachat/internal/identity"
	"github.com/matheus3301/wachat/internal/message"
	"github.com/matheus3301/wachat/internal/metrics"
	"github.com/matheus3301/wachat/internal/reconcile"
)

var (
	ErrEmptyMessage   = errors.New("message text is empty")
	ErrNoConversation = errors.New("no conversation selected")
	ErrNoMessage      = errors.New("no message selected")
	// ErrDuplicate is returned when a send resolves to the key of a message
	// already in the store.
	ErrDuplicate = errors.New("identical message already pending")
)

// Failure notification texts.
const (
	SendFailedText   = "Failed to save message to server."
	DeleteFailedText = "Failed to delete message on server."
)

// Writer performs the durable writes.
type Writer interface {
	CreateMessage(ctx context.Context, rec message.Record) error
	DeleteMessage(ctx context.Context, id string) error
}

// Queue runs store jobs one at a time. The engine implements it.
type Queue interface {
	Do(ctx context.Context, fn func(*reconcile.Store)) error
}

// Coordinator runs optimistic writes.
type Coordinator struct {
	queue      Queue
	writer     Writer
	dir        directory.Directory
	platformID string
	clock      func() time.Time
	bus        *bus.Bus
	metrics    *metrics.Metrics
	logger     *zap.Logger

	wg sync.WaitGroup

	// mu guards the bookkeeping for deletes of messages whose send is
	// still in flight. deleting counts such deletes per id; settled holds
	// how a send ended when its entry had already been removed.
	mu       sync.Mutex
	deleting map[string]int
	settled  map[string]Phase
}

// Config holds the coordinator's collaborators.
type Config struct {
	Queue      Queue
	Writer     Writer
	Directory  directory.Directory
	PlatformID string
	Clock      func() time.Time
	Bus        *bus.Bus
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

// New creates a coordinator.
func New(cfg Config) *Coordinator {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Coordinator{
		queue:      cfg.Queue,
		writer:     cfg.Writer,
		dir:        cfg.Directory,
		platformID: cfg.PlatformID,
		clock:      cfg.Clock,
		bus:        cfg.Bus,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		deleting:   make(map[string]int),
		settled:    make(map[string]Phase),
	}
}

// Send inserts text into conversationKey's thread and persists it in the
// background. The message is in the store when Send returns.
func (c *Coordinator) Send(ctx context.Context, conversationKey, text string) (*Action, error) {
	conversationKey = strings.TrimSpace(conversationKey)
	if conversationKey == "" {
		return nil, ErrNoConversation
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	secs := c.clock().Unix()
	id := identity.Local(conversationKey, secs, text)
	rec := message.Record{
		ID:        id,
		WaID:      conversationKey,
		From:      c.platformID,
		To:        conversationKey,
		Message:   text,
		Type:      string(message.TypeText),
		Timestamp: secs,
		Status:    string(message.StatusSent),
	}
	if c.dir != nil {
		if e, ok := c.dir.Lookup(conversationKey); ok {
			rec.Name = e.DisplayName
		}
	}

	var inserted bool
	m := message.FromRecord(rec, id, message.SourceLocal)
	if err := c.queue.Do(ctx, func(s *reconcile.Store) {
		inserted = s.InsertLocal(m)
	}); err != nil {
		return nil, err
	}
	if !inserted {
		return nil, ErrDuplicate
	}

	a := newAction(KindSend, id, conversationKey, PhasePending)
	wctx := context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.completeSend(wctx, a, rec)
	}()
	return a, nil
}

func (c *Coordinator) completeSend(ctx context.Context, a *Action, rec message.Record) {
	werr := c.writer.CreateMessage(ctx, rec)
	c.metrics.ObserveWrite(string(KindSend), werr)

	if werr == nil {
		if err := c.queue.Do(ctx, func(s *reconcile.Store) {
			if _, ok := s.Get(a.ID); !ok {
				c.settle(a.ID, PhaseConfirmed)
				return
			}
			s.Confirm(a.ID)
		}); err != nil {
			c.discard(a, err)
			return
		}
		c.logger.Info("message saved", zap.String("msg_id", a.ID))
		c.publish(bus.KindWriteDone, a, "", nil)
		a.finish(PhaseConfirmed, nil)
		return
	}

	if err := c.queue.Do(ctx, func(s *reconcile.Store) {
		if _, ok := s.Remove(a.ID); !ok {
			c.settle(a.ID, PhaseRolledBack)
		}
	}); err != nil {
		c.discard(a, err)
		return
	}
	c.logger.Warn("message save failed, rolled back", zap.String("msg_id", a.ID), zap.Error(werr))
	c.metrics.ObserveRollback(string(KindSend))
	c.publish(bus.KindWriteFailed, a, SendFailedText, werr)
	a.finish(PhaseRolledBack, werr)
}

// Delete removes id from the store and deletes it durably in the
// background. If the delete fails the removed message is restored as it was.
func (c *Coordinator) Delete(ctx context.Context, id string) (*Action, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrNoMessage
	}

	var (
		removed reconcile.Removed
		found   bool
	)
	if err := c.queue.Do(ctx, func(s *reconcile.Store) {
		removed, found = s.Remove(id)
		if found && removed.InFlight {
			c.mu.Lock()
			c.deleting[id]++
			c.mu.Unlock()
		}
	}); err != nil {
		return nil, err
	}
	if !found {
		c.logger.Debug("deleting message not in store", zap.String("msg_id", id))
	}

	a := newAction(KindDelete, id, removed.Message.ConversationKey, PhaseApplied)
	wctx := context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.completeDelete(wctx, a, removed, found)
	}()
	return a, nil
}

func (c *Coordinator) completeDelete(ctx context.Context, a *Action, removed reconcile.Removed, found bool) {
	werr := c.writer.DeleteMessage(ctx, a.ID)
	c.metrics.ObserveWrite(string(KindDelete), werr)

	pendingSend := found && removed.InFlight
	if werr == nil {
		if pendingSend {
			c.release(a.ID)
		}
		c.logger.Info("message deleted", zap.String("msg_id", a.ID))
		c.publish(bus.KindWriteDone, a, "", nil)
		a.finish(PhaseConfirmed, nil)
		return
	}

	restored := false
	if found {
		err := c.queue.Do(ctx, func(s *reconcile.Store) {
			if pendingSend {
				// The send may have finished while the entry was out of the
				// store. A rejected send stays gone, a confirmed one comes
				// back as confirmed.
				switch phase, _ := c.release(a.ID); phase {
				case PhaseRolledBack:
					return
				case PhaseConfirmed:
					removed.InFlight = false
				}
			}
			restored = s.Restore(removed)
		})
		if err != nil {
			if pendingSend {
				c.release(a.ID)
			}
			c.discard(a, err)
			return
		}
	}
	c.logger.Warn("message delete failed", zap.String("msg_id", a.ID), zap.Bool("restored", restored), zap.Error(werr))
	c.metrics.ObserveRollback(string(KindDelete))
	c.publish(bus.KindWriteFailed, a, DeleteFailedText, werr)
	a.finish(PhaseRolledBack, werr)
}

// settle records how a send ended if a delete removed its entry first.
func (c *Coordinator) settle(id string, p Phase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleting[id] > 0 {
		c.settled[id] = p
	}
}

// release ends one delete's interest in id's send and returns the send's
// outcome if it is already known.
func (c *Coordinator) release(id string) (Phase, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.settled[id]
	if c.deleting[id]--; c.deleting[id] <= 0 {
		delete(c.deleting, id)
		delete(c.settled, id)
	}
	return p, ok
}

func (c *Coordinator) discard(a *Action, err error) {
	c.logger.Debug("write completed after teardown", zap.String("msg_id", a.ID), zap.Error(err))
	a.finish(PhaseDiscarded, err)
}

func (c *Coordinator) publish(kind string, a *Action, text string, err error) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(bus.Event{
		Kind:      kind,
		Timestamp: c.clock(),
		Payload: bus.WriteOutcome{
			NotificationID:  uuid.NewString(),
			Action:          string(a.Kind),
			MessageID:       a.ID,
			ConversationKey: a.ConversationKey,
			Text:            text,
			Err:             err,
		},
	})
}

// Wait blocks until every background write has completed.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}
