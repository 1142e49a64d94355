// Package publish fans SERVER_STATS_UPDATE snapshots out to downstream
// consumers: a primary sink (Redis pub/sub) plus any number of in-process
// subscribers, each isolated so one panicking subscriber never blocks the
// others.
package publish

import (
	"context"
	"sync"

	"github.com/hlstats/daemon/internal/storage"
	"go.uber.org/zap"
)

// Subscriber receives a published payload. It must not block for long; the
// Fanout calls subscribers synchronously, isolated by recover().
type Subscriber func(ctx context.Context, channel string, payload []byte)

// Fanout implements storage.Publisher, forwarding to an optional primary
// sink and any registered in-process subscribers.
type Fanout struct {
	primary storage.Publisher // nil when no downstream broker is configured
	logger  *zap.SugaredLogger

	mu   sync.RWMutex
	subs []Subscriber
}

// NewFanout constructs a Fanout. primary may be nil.
func NewFanout(primary storage.Publisher, logger *zap.SugaredLogger) *Fanout {
	return &Fanout{primary: primary, logger: logger}
}

// Subscribe registers an in-process subscriber.
func (f *Fanout) Subscribe(sub Subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, sub)
}

// Publish forwards payload on channel to the primary sink (at-least-once)
// and every in-process subscriber.
func (f *Fanout) Publish(ctx context.Context, channel string, payload []byte) error {
	var firstErr error
	if f.primary != nil {
		if err := f.primary.Publish(ctx, channel, payload); err != nil {
			firstErr = err
		}
	}

	f.mu.RLock()
	subs := make([]Subscriber, len(f.subs))
	copy(subs, f.subs)
	f.mu.RUnlock()

	for _, sub := range subs {
		f.notify(ctx, sub, channel, payload)
	}
	return firstErr
}

func (f *Fanout) notify(ctx context.Context, sub Subscriber, channel string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Errorw("publish subscriber panicked", "channel", channel, "panic", r)
		}
	}()
	sub(ctx, channel, payload)
}
