package mqtt

import (
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Connection constants.
const (
	// DefaultConnectTimeout is the maximum time to wait for the broker to
	// accept a connection.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultKeepAlive is the keepalive interval for short-lived sessions.
	DefaultKeepAlive = 30 * time.Second

	// ackGuardSlack is added to the connect timeout to bound publish and
	// subscribe acknowledgement waits. The guard must always fire before a
	// caller-facing result is left unsettled indefinitely.
	ackGuardSlack = 1 * time.Second

	// disconnectQuiesce is the time to wait for pending operations on
	// disconnect, in milliseconds (paho API).
	disconnectQuiesce = 250

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2
)

// Maximum payload size for MQTT messages (1MB).
// This prevents resource exhaustion and aligns with typical broker limits.
const maxPayloadSize = 1 << 20

// Options configures a single-use MQTT session.
type Options struct {
	// BrokerURL is the full broker URL (tcp://, ssl://, ws://, wss://).
	// Empty is a configuration error, reported as ErrMissingBrokerURL.
	BrokerURL string

	// Username and Password authenticate against the broker ACL. Both are
	// required; either being empty yields ErrMissingCredentials before any
	// network attempt.
	Username string
	Password string

	// ClientID identifies this session to the broker. Callers without an
	// explicit identity should use FallbackClientID to avoid broker-side
	// identifier collisions across concurrent sessions.
	ClientID string

	// ConnectTimeout bounds the connection attempt. Zero means DefaultConnectTimeout.
	ConnectTimeout time.Duration

	// KeepAlive is the MQTT keepalive interval. Zero means DefaultKeepAlive.
	KeepAlive time.Duration

	// OnConnectionLost is invoked when an established connection drops.
	// Optional. Invoked from a paho goroutine.
	OnConnectionLost func(err error)
}

// withDefaults returns a copy of the options with zero values filled in.
func (o Options) withDefaults() Options {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.KeepAlive <= 0 {
		o.KeepAlive = DefaultKeepAlive
	}
	return o
}

// buildClientOptions creates paho MQTT options for a single-use session.
//
// Connection policy:
//   - Clean session: the broker keeps no state across this connection
//   - Auto-reconnect and connect-retry disabled: a silently resumed session
//     would replay a stale intent and risk duplicate command delivery
func buildClientOptions(o Options) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	opts.AddBroker(o.BrokerURL)
	opts.SetClientID(o.ClientID)
	opts.SetUsername(o.Username)
	opts.SetPassword(o.Password)

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	opts.SetConnectTimeout(o.ConnectTimeout)
	opts.SetKeepAlive(o.KeepAlive)

	return opts
}

// FallbackClientID derives a broker client identifier when credentials carry
// none. The epoch-milliseconds suffix keeps identifiers unique across
// concurrent sessions; a collision would make the broker disconnect the
// earlier session.
//
// Pattern: {role}-{context}-{epoch_ms}, e.g. "admin-slot-1767225600000".
func FallbackClientID(role, context string) string {
	return fmt.Sprintf("%s-%s-%d", role, context, time.Now().UnixMilli())
}
