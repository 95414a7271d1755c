package session

import (
	"fmt"
	"time"

	"github.com/nerrad567/robotlink/internal/infrastructure/config"
)

// QoSAtLeastOnce is the delivery level used for the command subscription.
const QoSAtLeastOnce byte = 1

// Config is the resolved settings for one session.
type Config struct {
	ClientID string
	Endpoint string
	Port     int
	Topic    string

	// ReceiveCount is the inbound target; 0 waits out the full timeout.
	ReceiveCount uint64

	// PublishCount is the number of publishes; 0 publishes until cancelled.
	PublishCount uint64

	// Message is the outbound body; empty skips publishing entirely.
	Message []byte

	// Timeout bounds every gated wait.
	Timeout time.Duration

	// PublishInterval is the pause after each publish attempt.
	PublishInterval time.Duration

	// EnqueueTimeout bounds each Queue.Enqueue call; 0 uses DefaultEnqueueTimeout.
	EnqueueTimeout time.Duration

	// PublishQoS is the delivery level for outbound messages.
	PublishQoS byte
}

// ConfigFromSettings builds a session Config from the loaded settings.
func ConfigFromSettings(cfg *config.Config) Config {
	return Config{
		ClientID:        cfg.MQTT.Broker.ClientID,
		Endpoint:        cfg.MQTT.Broker.Host,
		Port:            cfg.MQTT.Broker.Port,
		Topic:           cfg.Session.Topic,
		ReceiveCount:    uint64(max(cfg.Session.ReceiveCount, 0)),
		PublishCount:    uint64(max(cfg.Session.PublishCount, 0)),
		Message:         []byte(cfg.Session.Message),
		Timeout:         cfg.GetSessionTimeout(),
		PublishInterval: cfg.GetPublishInterval(),
		EnqueueTimeout:  cfg.GetEnqueueTimeout(),
		PublishQoS:      byte(cfg.MQTT.QoS),
	}
}

// Validate checks the settings a run depends on.
func (c Config) Validate() error {
	switch {
	case c.Topic == "":
		return fmt.Errorf("%w: topic is required", ErrInvalidConfig)
	case c.Timeout <= 0:
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	case len(c.Message) > 0 && c.PublishInterval <= 0:
		return fmt.Errorf("%w: publish interval must be positive", ErrInvalidConfig)
	case c.EnqueueTimeout < 0:
		return fmt.Errorf("%w: enqueue timeout must not be negative", ErrInvalidConfig)
	case c.PublishQoS > 2:
		return fmt.Errorf("%w: publish qos %d", ErrInvalidConfig, c.PublishQoS)
	}
	return nil
}
