package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/matheus3301/wachat/internal/bus"
	"github.com/matheus3301/wachat/internal/message"
	"github.com/matheus3301/wachat/internal/reconcile"
)

type snapshotter interface {
	Do(ctx context.Context, fn func(*reconcile.Store)) error
}

type nameCache interface {
	LearnNames(msgs []message.Message) (int, error)
}

type refresher interface {
	Refresh() error
}

// learner copies sender names seen in messages into the contact cache, so
// later threads without a name still resolve.
type learner struct {
	queue  snapshotter
	cache  nameCache
	dir    refresher
	bus    *bus.Bus
	logger *zap.Logger

	// known is only touched by the learner goroutine.
	known map[string]string

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func newLearner(q snapshotter, cache nameCache, dir refresher, b *bus.Bus, logger *zap.Logger) *learner {
	return &learner{
		queue:  q,
		cache:  cache,
		dir:    dir,
		bus:    b,
		logger: logger,
		known:  make(map[string]string),
	}
}

func (l *learner) Start() {
	ch, unsub := l.bus.Subscribe("store.", 16)
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.done = make(chan struct{})
	go func() {
		defer close(l.done)
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ch:
				l.learn(ctx)
			}
		}
	}()
}

func (l *learner) Stop() {
	l.once.Do(func() {
		if l.cancel == nil {
			return
		}
		l.cancel()
		<-l.done
	})
}

// learn writes the names that changed since the last pass.
func (l *learner) learn(ctx context.Context) {
	var msgs []message.Message
	err := l.queue.Do(ctx, func(s *reconcile.Store) {
		msgs = s.Snapshot()
	})
	if err != nil {
		return
	}

	var fresh []message.Message
	for _, m := range msgs {
		if m.ConversationKey == "" || m.SenderDisplayName == "" {
			continue
		}
		if l.known[m.ConversationKey] == m.SenderDisplayName {
			continue
		}
		l.known[m.ConversationKey] = m.SenderDisplayName
		fresh = append(fresh, m)
	}
	if len(fresh) == 0 {
		return
	}

	n, err := l.cache.LearnNames(fresh)
	if err != nil {
		l.logger.Warn("failed to cache contact names", zap.Error(err))
		return
	}
	if err := l.dir.Refresh(); err != nil {
		l.logger.Warn("failed to refresh contacts", zap.Error(err))
		return
	}
	l.logger.Debug("contact names cached", zap.Int("count", n))
}
