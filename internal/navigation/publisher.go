package navigation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pal-ai/gateway/pkg/logger"
	"go.uber.org/zap"
)

// Publisher fans delivered route updates out to other consumers, such as a
// web dashboard following a field technician.
type Publisher interface {
	Publish(ctx context.Context, update RouteUpdate) error
	Close()
}

// PublisherMetrics receives publish outcomes
type PublisherMetrics interface {
	PublishedInc()
	PublishErrInc()
	PublishObserve(d time.Duration)
	SetConnected(connected bool)
}

// NATSPublisher publishes JSON route updates to <prefix>.<sessionID>.
type NATSPublisher struct {
	nc      *nats.Conn
	prefix  string
	metrics PublisherMetrics
}

// NewNATSPublisher connects to url. Reconnects are handled by the client.
func NewNATSPublisher(url, subjectPrefix string) (*NATSPublisher, error) {
	m := natsMetrics{}
	nc, err := nats.Connect(url,
		nats.Name("pal-ai-gateway"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			m.SetConnected(false)
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			m.SetConnected(true)
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			m.SetConnected(false)
			logger.Info("nats connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	m.SetConnected(true)

	return &NATSPublisher{nc: nc, prefix: subjectPrefix, metrics: m}, nil
}

// Subject returns the subject updates for sessionID are published on.
func (p *NATSPublisher) Subject(sessionID string) string {
	return subjectFor(p.prefix, sessionID)
}

// Publish sends update as JSON.
func (p *NATSPublisher) Publish(ctx context.Context, update RouteUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshal route update: %w", err)
	}

	start := time.Now()
	err = p.nc.Publish(p.Subject(update.SessionID), payload)
	p.metrics.PublishObserve(time.Since(start))
	if err != nil {
		p.metrics.PublishErrInc()
		return fmt.Errorf("publish route update: %w", err)
	}
	p.metrics.PublishedInc()
	return nil
}

// Close flushes buffered messages and closes the connection.
func (p *NATSPublisher) Close() {
	if p.nc == nil {
		return
	}
	if err := p.nc.FlushTimeout(2 * time.Second); err != nil {
		logger.Warn("nats flush failed", zap.Error(err))
	}
	p.nc.Close()
}

// NopPublisher discards updates. It is used when NATS is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, RouteUpdate) error { return nil }
func (NopPublisher) Close()                                     {}

func subjectFor(prefix, sessionID string) string {
	token := subjectToken(sessionID)
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		return token
	}
	return prefix + "." + token
}

// subjectToken makes s safe as a single NATS subject token.
func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
