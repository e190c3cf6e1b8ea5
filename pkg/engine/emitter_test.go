package engine_test

import (
	"io"
	"testing"
	"time"

	"github.com/E-837/ad-ops-command-center-sub002/pkg/engine"
	"github.com/E-837/ad-ops-command-center-sub002/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestEmitter_DeliversInOrder(t *testing.T) {
	em := engine.NewEmitter(newTestLogger())
	events, unsubscribe := em.Subscribe(8)
	defer unsubscribe()

	em.Emit(models.Event{Type: models.StageStartedEvent, StageID: "brief"})
	em.Emit(models.Event{Type: models.StageProgressEvent, StageID: "brief"})
	em.Emit(models.Event{Type: models.StageCompletedEvent, StageID: "brief"})

	var types []models.EventType
	for i := 0; i < 3; i++ {
		select {
		case ev := <-events:
			types = append(types, ev.Type)
			assert.False(t, ev.Timestamp.IsZero())
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
	assert.Equal(t, []models.EventType{
		models.StageStartedEvent,
		models.StageProgressEvent,
		models.StageCompletedEvent,
	}, types)
}

func TestEmitter_SlowSubscriberDoesNotBlock(t *testing.T) {
	em := engine.NewEmitter(newTestLogger())
	// A subscriber with a one-slot buffer that never reads.
	_, unsubscribe := em.Subscribe(1)
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			em.Emit(models.Event{Type: models.StageProgressEvent, StageID: "plan"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a slow subscriber")
	}
}

func TestEmitter_FanOut(t *testing.T) {
	em := engine.NewEmitter(newTestLogger())
	first, unsubFirst := em.Subscribe(4)
	second, unsubSecond := em.Subscribe(4)
	defer unsubSecond()
	assert.Equal(t, 2, em.SubscriberCount())

	em.Emit(models.Event{Type: models.StageStartedEvent, ExecutionID: "exec-1"})
	for _, ch := range []<-chan models.Event{first, second} {
		select {
		case ev := <-ch:
			assert.Equal(t, "exec-1", ev.ExecutionID)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}

	// After unsubscribing, the channel closes and no further events arrive.
	unsubFirst()
	unsubFirst() // idempotent
	assert.Equal(t, 1, em.SubscriberCount())
	em.Emit(models.Event{Type: models.StageCompletedEvent, ExecutionID: "exec-1"})
	_, open := <-first
	assert.False(t, open)
}
