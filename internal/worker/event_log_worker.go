package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/identity-service/internal/events"
)

// StartEventLogWorker subscribes to every change event on an in-process
// dispatcher and logs it. It stands in for downstream consumers when the
// memory broker driver is used.
func StartEventLogWorker(dispatcher events.Dispatcher, logger *zap.Logger) {
	if dispatcher == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	handler := func(_ context.Context, event events.Event) error {
		logger.Info("event dispatched",
			zap.String("event_type", string(event.Type)),
			zap.String("kind", event.Kind),
			zap.String("entity_id", event.EntityID),
			zap.Time("emitted_at", event.EmittedAt))
		return nil
	}
	for _, eventType := range []events.EventType{events.EventCreated, events.EventUpdated, events.EventDeleted} {
		dispatcher.Subscribe(eventType, handler)
	}
}
