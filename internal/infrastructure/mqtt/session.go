package mqtt

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// MessageHandler is the callback signature for received messages.
//
// Handlers are invoked in separate goroutines by the paho library.
// They should not block for extended periods.
//
// Parameters:
//   - topic: The topic the message was received on (wildcards expanded)
//   - payload: The raw message payload (typically JSON)
//
// Returns:
//   - error: Logged but does not affect message acknowledgment
type MessageHandler func(topic string, payload []byte) error

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Conn is the session surface consumed by the command publisher, diagnostic
// session, and event stream subscriber. Session implements it; tests use fakes.
type Conn interface {
	// Publish sends a message and waits for broker acknowledgement at the
	// given QoS level.
	Publish(topic string, qos byte, payload []byte) error

	// Subscribe registers a handler and waits for the broker to acknowledge
	// the subscription.
	Subscribe(topic string, qos byte, handler MessageHandler) error

	// Close tears the connection down. Idempotent.
	Close()
}

// Dialer opens a Conn. The package-level Dial (wrapped by DialConn) is the
// production dialer.
type Dialer func(opts Options) (Conn, error)

// Session is a single-use MQTT connection.
//
// One session serves exactly one logical operation (a command publish, a
// diagnostic test, or a long-lived event subscription) and is never pooled or
// reused. Close is guaranteed to release the underlying handle exactly once
// regardless of how many times it is called or which exit path invoked it.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Session struct {
	client     pahomqtt.Client
	ackTimeout time.Duration

	// lost records that the broker dropped the connection while the session
	// was alive. Used to classify ack failures as ErrClosedPrematurely
	// instead of a bare timeout.
	lost atomic.Bool

	closeOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// Dial opens a connection to the MQTT broker for one logical operation.
//
// It validates configuration and credentials before any network attempt,
// builds a clean-session client with reconnection disabled, and waits for the
// broker to accept the connection within the connect timeout.
//
// Failure classification:
//   - ErrMissingBrokerURL: no broker URL configured (no socket opened)
//   - ErrMissingCredentials: username or password empty (no socket opened)
//   - ErrConnectTimeout: broker did not accept within the timeout
//   - ErrConnectionFailed: broker or transport reported an error
//
// On any failure the underlying handle is released before Dial returns.
//
// Returns:
//   - *Session: Connected session ready for one operation
//   - error: Classified failure
func Dial(opts Options) (*Session, error) {
	if opts.BrokerURL == "" {
		return nil, ErrMissingBrokerURL
	}
	if opts.Username == "" || opts.Password == "" {
		return nil, ErrMissingCredentials
	}

	opts = opts.withDefaults()

	s := &Session{
		ackTimeout: opts.ConnectTimeout + ackGuardSlack,
	}

	clientOpts := buildClientOptions(opts)
	clientOpts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		s.lost.Store(true)
		if opts.OnConnectionLost != nil {
			opts.OnConnectionLost(err)
		}
	})

	s.client = pahomqtt.NewClient(clientOpts)

	token := s.client.Connect()
	if !token.WaitTimeout(opts.ConnectTimeout) {
		s.Close()
		return nil, fmt.Errorf("%w: no broker response after %v", ErrConnectTimeout, opts.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return s, nil
}

// DialConn adapts Dial to the Dialer function type.
func DialConn(opts Options) (Conn, error) {
	return Dial(opts)
}

// Publish sends a message to the specified topic and waits for broker
// acknowledgement.
//
// Resolution only happens after the broker has acknowledged the publish at
// the requested QoS level — not merely after the socket write. The wait is
// bounded by the ack guard (connect timeout + 1s) so a broker that accepts
// the connection but never acks cannot leave the caller hanging.
//
// Failure classification:
//   - ErrInvalidTopic / ErrInvalidQoS: bad input, nothing sent
//   - ErrClosedPrematurely: connection dropped before the ack arrived
//   - ErrAckTimeout: broker silent past the ack guard
//   - ErrPublishFailed: broker explicitly rejected the publish
func (s *Session) Publish(topic string, qos byte, payload []byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	token := s.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(s.ackTimeout) {
		if s.lost.Load() {
			return fmt.Errorf("%w: connection dropped before publish ack", ErrClosedPrematurely)
		}
		return fmt.Errorf("%w: no publish ack after %v", ErrAckTimeout, s.ackTimeout)
	}
	if err := token.Error(); err != nil {
		if s.lost.Load() {
			return fmt.Errorf("%w: %w", ErrClosedPrematurely, err)
		}
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// Subscribe registers a handler for messages on the specified topic and waits
// for the broker to acknowledge the subscription.
//
// Topics can include MQTT wildcards:
//   - + (single-level): "machines/+/payments" matches any machine
//   - # (multi-level): "machines/#" matches all machine topics
//
// The handler is called in a separate goroutine for each received message
// and is wrapped with panic recovery.
func (s *Session) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}

	token := s.client.Subscribe(topic, qos, s.wrapHandler(handler))
	if !token.WaitTimeout(s.ackTimeout) {
		if s.lost.Load() {
			return fmt.Errorf("%w: connection dropped before subscribe ack", ErrClosedPrematurely)
		}
		return fmt.Errorf("%w: no subscribe ack after %v", ErrAckTimeout, s.ackTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	return nil
}

// Close tears the session down.
//
// Idempotent: the underlying client is disconnected exactly once no matter
// how many exit paths call Close. A short quiesce lets in-flight packets
// drain before the socket is dropped.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.client == nil {
			return
		}
		s.client.Disconnect(disconnectQuiesce)
	})
}

// IsConnected reports the current connection state.
func (s *Session) IsConnected() bool {
	return s.client != nil && s.client.IsConnected() && !s.lost.Load()
}

// SetLogger sets a logger for handler error and panic logging.
// If not set, errors in handlers are silently ignored.
func (s *Session) SetLogger(logger Logger) {
	s.loggerMu.Lock()
	s.logger = logger
	s.loggerMu.Unlock()
}

// getLogger returns the current logger (may be nil).
func (s *Session) getLogger() Logger {
	s.loggerMu.RLock()
	defer s.loggerMu.RUnlock()
	return s.logger
}

// wrapHandler wraps a MessageHandler with panic recovery and optional logging.
func (s *Session) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := s.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if logger := s.getLogger(); logger != nil {
				logger.Warn("MQTT handler returned error",
					"topic", msg.Topic(),
					"error", err,
				)
			}
		}
	}
}
