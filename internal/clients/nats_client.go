package clients

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"launchpad-backend/internal/config"
	"launchpad-backend/internal/metrics"
)

// Event subjects, relative to the configured prefix
const (
	SubjectTokensRefreshed = "tokens.refreshed"
	SubjectTokensCreated   = "tokens.created"
	SubjectTradesSettled   = "trades.settled"
	SubjectTradesFailed    = "trades.failed"
	SubjectStakingUpdated  = "staking.updated"
)

// NATSClient NATS event publisher
type NATSClient struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSClient Create NATS client
func NewNATSClient(cfg config.NATSConfig) (*NATSClient, error) {
	connectTimeout := 10 * time.Second
	if cfg.Timeout > 0 {
		connectTimeout = time.Duration(cfg.Timeout) * time.Second
	}
	reconnectWait := 2 * time.Second
	if cfg.ReconnectWait > 0 {
		reconnectWait = time.Duration(cfg.ReconnectWait) * time.Second
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name("launchpad-backend"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logrus.Warnf("⚠️ [NATS] Disconnected: %v", err)
			metrics.NATSConnectionStatus.Set(0)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logrus.Infof("✅ [NATS] Reconnected to %s", nc.ConnectedUrl())
			metrics.NATSConnectionStatus.Set(1)
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			metrics.NATSConnectionStatus.Set(0)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect NATS failed: %w", err)
	}
	metrics.NATSConnectionStatus.Set(1)
	logrus.Infof("✅ [NATS] Connected to %s", conn.ConnectedUrl())

	return &NATSClient{conn: conn, prefix: cfg.SubjectPrefix}, nil
}

// Subject returns the full subject for a relative one
func (c *NATSClient) Subject(rel string) string {
	if c.prefix == "" {
		return rel
	}
	return c.prefix + "." + rel
}

// Publish marshals payload as JSON and publishes it under the prefixed subject
func (c *NATSClient) Publish(subject string, payload interface{}) error {
	full := c.Subject(subject)

	data, err := json.Marshal(payload)
	if err != nil {
		metrics.NATSMessagesPublished.WithLabelValues(full, "error").Inc()
		return fmt.Errorf("marshal %s payload failed: %w", full, err)
	}
	if err := c.conn.Publish(full, data); err != nil {
		metrics.NATSMessagesPublished.WithLabelValues(full, "error").Inc()
		return fmt.Errorf("publish %s failed: %w", full, err)
	}

	metrics.NATSMessagesPublished.WithLabelValues(full, "ok").Inc()
	logrus.Debugf("📤 [NATS] Published %s (%d bytes)", full, len(data))
	return nil
}

// Close drains pending publishes then closes the connection
func (c *NATSClient) Close() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
	}
}

// GetConnection returns the underlying connection
func (c *NATSClient) GetConnection() *nats.Conn {
	return c.conn
}
