package engine

import (
	"sync"
	"time"

	"github.com/E-837/ad-ops-command-center-sub002/pkg/models"
	"github.com/sirupsen/logrus"
)

// DefaultSubscriberBuffer is the event backlog a subscriber may fall
// behind by before emissions to it are dropped.
const DefaultSubscriberBuffer = 64

// Emitter fans stage lifecycle events out to any number of subscribers.
// Delivery is best effort and in order per subscriber: events for a slow
// subscriber whose buffer is full are dropped rather than stalling the
// stage that emitted them.
type Emitter struct {
	mu     sync.RWMutex
	subs   map[int]chan models.Event
	nextID int
	logger logrus.FieldLogger
}

func NewEmitter(logger logrus.FieldLogger) *Emitter {
	return &Emitter{
		subs:   make(map[int]chan models.Event),
		logger: logger,
	}
}

// Subscribe registers a listener and returns its channel together with an
// unsubscribe function. buffer <= 0 selects DefaultSubscriberBuffer.
func (e *Emitter) Subscribe(buffer int) (<-chan models.Event, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	ch := make(chan models.Event, buffer)

	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.subs[id] = ch
	e.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.subs, id)
			e.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsubscribe
}

// Emit delivers an event to every current subscriber without blocking.
func (e *Emitter) Emit(ev models.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	for id, ch := range e.subs {
		select {
		case ch <- ev:
		default:
			e.logger.Warnf("Dropping %s event for execution %s: subscriber %d is not keeping up", ev.Type, ev.ExecutionID, id)
		}
	}
}

// SubscriberCount reports the number of attached listeners.
func (e *Emitter) SubscriberCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subs)
}
