package events

import (
	"context"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quill/internal/common"
	"github.com/ternarybob/quill/internal/interfaces"
)

// NewPublisher returns a NATS publisher when a URL is configured and a no-op otherwise.
// A broker that cannot be reached at startup degrades to the no-op publisher.
func NewPublisher(cfg common.EventsConfig, logger arbor.ILogger) interfaces.EventPublisher {
	if cfg.NATSURL == "" {
		logger.Debug().Msg("Event publishing disabled (no nats_url)")
		return NewNoopPublisher()
	}

	publisher, err := NewNATSPublisher(cfg.NATSURL, cfg.SubjectPrefix, logger)
	if err != nil {
		logger.Warn().Err(err).Str("url", cfg.NATSURL).Msg("NATS unavailable, job events will not be published")
		return NewNoopPublisher()
	}
	return publisher
}

// Subject maps an event type onto a subject under prefix: job.completed -> <prefix>.completed
func Subject(prefix, eventType string) string {
	name := strings.TrimPrefix(eventType, "job.")
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// NoopPublisher discards every event
type NoopPublisher struct{}

func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

func (p *NoopPublisher) Publish(ctx context.Context, event interfaces.JobEvent) error {
	return nil
}

func (p *NoopPublisher) Close() error {
	return nil
}
