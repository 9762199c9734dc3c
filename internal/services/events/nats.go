package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quill/internal/interfaces"
)

// NATSPublisher publishes job events as JSON messages on a NATS connection
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
	logger arbor.ILogger
}

// NewNATSPublisher connects to url and reconnects indefinitely after drops
func NewNATSPublisher(url, prefix string, logger arbor.ILogger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("quill"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Info().Str("url", nc.ConnectedUrl()).Str("prefix", prefix).Msg("Job events publishing to NATS")

	return &NATSPublisher{nc: nc, prefix: prefix, logger: logger}, nil
}

// Publish sends the event. Errors are returned for the caller to log; they never affect the job.
func (p *NATSPublisher) Publish(ctx context.Context, event interfaces.JobEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	subject := Subject(p.prefix, event.Type)
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}

	p.logger.Trace().Str("subject", subject).Str("job_id", event.JobID).Msg("Job event published")
	return nil
}

// Close flushes pending messages and closes the connection
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}
