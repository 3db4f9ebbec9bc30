package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type localSub struct {
	ch chan Change
}

// LocalBroker fans changes out inside one process. Slow subscribers lose events instead of blocking publishers.
type LocalBroker struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]map[*localSub]struct{}
	log  zerolog.Logger
}

var _ Broker = (*LocalBroker)(nil)

// NewLocalBroker creates an empty broker.
func NewLocalBroker(log zerolog.Logger) *LocalBroker {
	return &LocalBroker{
		subs: map[uuid.UUID]map[*localSub]struct{}{},
		log:  log.With().Str("component", "realtime").Logger(),
	}
}

func (b *LocalBroker) Publish(_ context.Context, c Change) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs[c.UserID] {
		select {
		case sub.ch <- c:
		default:
			droppedChangesTotal.WithLabelValues("local").Inc()
			b.log.Warn().Str("user_id", c.UserID.String()).Str("table", c.Table).Msg("subscriber too slow, change dropped")
		}
	}
	return nil
}

func (b *LocalBroker) Subscribe(_ context.Context, userID uuid.UUID) (<-chan Change, func(), error) {
	sub := &localSub{ch: make(chan Change, subscriberBuffer)}

	b.mu.Lock()
	if b.subs[userID] == nil {
		b.subs[userID] = map[*localSub]struct{}{}
	}
	b.subs[userID][sub] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[userID][sub]; !ok {
			return
		}
		delete(b.subs[userID], sub)
		if len(b.subs[userID]) == 0 {
			delete(b.subs, userID)
		}
		close(sub.ch)
	}
	return sub.ch, cancel, nil
}

func (b *LocalBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for user, subs := range b.subs {
		for sub := range subs {
			close(sub.ch)
		}
		delete(b.subs, user)
	}
	return nil
}
