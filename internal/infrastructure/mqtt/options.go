package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/robotlink/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout bounds a single connect attempt, proxy tunnel included.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout bounds presence publishes during shutdown.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 60 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12

	// alpnPort is the port on which the broker expects MQTT negotiated via ALPN.
	alpnPort = 443

	// alpnProtocol is the ALPN protocol name for MQTT over port 443.
	alpnProtocol = "x-amzn-mqtt-ca"
)

// brokerURL returns the paho broker URL for cfg.
func brokerURL(cfg config.MQTTConfig) string {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(cfg.Broker.Host, strconv.Itoa(cfg.Broker.Port)))
}

// buildClientOptions creates paho MQTT options from robotlink config.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - Client ID and optional username/password
//   - Mutual TLS from certificate and key files
//   - HTTP CONNECT proxy tunnelling when a proxy is configured
//   - Auto-reconnect after the first connection is established
//   - Last Will and Testament when a status topic is configured
//
// Initial connection retries are driven by Client.Start, not by paho,
// so that every failed attempt is surfaced as an event.
func buildClientOptions(cfg config.MQTTConfig) (*pahomqtt.ClientOptions, error) {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(brokerURL(cfg))
	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	// Clean session - the command topic is re-subscribed on every run.
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	// Messages are routed by Subscribe; anything else is dropped.
	opts.SetDefaultPublishHandler(func(_ pahomqtt.Client, _ pahomqtt.Message) {})

	if cfg.Broker.TLS {
		tlsConfig, err := buildTLSConfig(cfg)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsConfig)
	}

	if cfg.Proxy.Enabled() {
		proxyAddr := net.JoinHostPort(cfg.Proxy.Host, strconv.Itoa(cfg.Proxy.Port))
		opts.SetCustomOpenConnectionFn(proxyConnectionFn(proxyAddr, defaultConnectTimeout))
	}

	if cfg.StatusTopic != "" {
		configureLWT(opts, cfg.StatusTopic, cfg.Broker.ClientID)
	}

	return opts, nil
}

// buildTLSConfig loads the client certificate and optional CA bundle.
//
// Without a CA file the system roots are used. On port 443 the ALPN
// protocol is set so the broker routes the connection to MQTT.
func buildTLSConfig(cfg config.MQTTConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: tlsMinVersion,
		ServerName: cfg.Broker.Host,
	}

	if cfg.TLS.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("%w: loading client certificate: %w", ErrTLSConfig, err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if cfg.TLS.CAFile != "" {
		pem, err := os.ReadFile(cfg.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("%w: reading CA file: %w", ErrTLSConfig, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("%w: no certificates found in %s", ErrTLSConfig, cfg.TLS.CAFile)
		}
		tlsConfig.RootCAs = pool
	}

	if cfg.Broker.Port == alpnPort {
		tlsConfig.NextProtos = []string{alpnProtocol}
	}

	return tlsConfig, nil
}

// configureLWT sets up Last Will and Testament for offline detection.
//
// The broker publishes the will if the robot drops off without a clean
// disconnect, so fleet tooling watching the status topic sees it go offline.
//
// QoS: 1, Retained: true (new subscribers see last status)
func configureLWT(opts *pahomqtt.ClientOptions, topic, clientID string) {
	opts.SetWill(topic, buildStatusPayload("offline", clientID, "unexpected_disconnect"), 1, true)
}

// buildOnlinePayload creates the JSON payload for online status messages.
func buildOnlinePayload(clientID string) string {
	return buildStatusPayload("online", clientID, "")
}

// buildOfflinePayload creates the JSON payload for graceful offline status.
func buildOfflinePayload(clientID string) string {
	return buildStatusPayload("offline", clientID, "graceful_shutdown")
}

func buildStatusPayload(status, clientID, reason string) string {
	ts := time.Now().UTC().Format(time.RFC3339)
	if reason == "" {
		return fmt.Sprintf(`{"status":%q,"client_id":%q,"timestamp":%q}`, status, clientID, ts)
	}
	return fmt.Sprintf(`{"status":%q,"client_id":%q,"reason":%q,"timestamp":%q}`, status, clientID, reason, ts)
}
