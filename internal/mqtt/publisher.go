package mqtt

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/AaronLay10/FNOLSimulator/internal/events"
	"github.com/AaronLay10/FNOLSimulator/internal/logging"
)

// EventsTopic returns the topic events are published on.
func EventsTopic(prefix string) string {
	return prefix + "/events"
}

// Publisher forwards bus events to the broker as JSON.
type Publisher struct {
	transport Transport
	prefix    string
	logger    *slog.Logger
}

// NewPublisher creates a publisher.
func NewPublisher(t Transport, prefix string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Publisher{transport: t, prefix: prefix, logger: logger}
}

// Run publishes every event received from the bus until ctx is cancelled.
// Events arriving while the broker is unreachable are dropped.
func (p *Publisher) Run(ctx context.Context, bus *events.Bus) {
	sub := bus.Subscribe(256)
	defer bus.Unsubscribe(sub)

	topic := EventsTopic(p.prefix)
	failing := false
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub:
			if !ok {
				return
			}
			if !p.transport.IsConnected() {
				continue
			}
			payload, err := json.Marshal(e)
			if err != nil {
				p.logger.Error("marshal event", "event", e.Name, "error", err)
				continue
			}
			if err := p.transport.Publish(topic, false, payload); err != nil {
				if !failing {
					p.logger.Warn("mqtt publish failed", "topic", topic, "error", err)
					failing = true
				}
				continue
			}
			failing = false
		}
	}
}
