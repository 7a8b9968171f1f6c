package stream

import (
	"fmt"
	"sync"

	"github.com/idea-vending/vendsync/internal/credentials"
	"github.com/idea-vending/vendsync/internal/infrastructure/config"
	"github.com/idea-vending/vendsync/internal/infrastructure/logging"
	"github.com/idea-vending/vendsync/internal/infrastructure/mqtt"
	"github.com/idea-vending/vendsync/internal/payment"
)

// Status is the connection state reported through the status callback.
type Status string

// Subscriber statuses.
const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// Sink receives normalized payment records from the event stream.
//
// Consume is called from MQTT handler goroutines; implementations must be
// safe for concurrent use and should not block for extended periods.
type Sink interface {
	Consume(p payment.Payment)
}

// MultiSink fans one event out to several sinks in order.
type MultiSink []Sink

// Consume implements Sink.
func (m MultiSink) Consume(p payment.Payment) {
	for _, s := range m {
		s.Consume(p)
	}
}

// Subscriber owns one long-lived event stream session.
//
// Start connects and subscribes; the session then stays up until Disconnect
// or the broker drops it — there is no automatic reconnection. Multiple
// subscribers are fully isolated, each owning its own connection and client
// identifier.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Subscriber struct {
	cfg      config.MQTTConfig
	topics   []string
	sink     Sink
	onStatus func(Status)
	dial     mqtt.Dialer
	logger   *logging.Logger

	mu         sync.Mutex
	conn       mqtt.Conn
	status     Status
	generation uint64
}

// NewSubscriber creates a disconnected subscriber.
//
// Parameters:
//   - cfg: MQTT broker configuration
//   - topics: Topics to subscribe to; empty means the default wildcard pair
//     covering every machine's payments and every enterprise's sales
//   - sink: Destination for normalized payment records
//   - onStatus: Status callback; may be nil
//   - logger: Structured logger
func NewSubscriber(cfg config.MQTTConfig, topics []string, sink Sink, onStatus func(Status), logger *logging.Logger) *Subscriber {
	if len(topics) == 0 {
		topics = []string{
			mqtt.Topics{}.AllMachinePayments(),
			mqtt.Topics{}.AllEnterpriseSales(),
		}
	}
	return &Subscriber{
		cfg:      cfg,
		topics:   topics,
		sink:     sink,
		onStatus: onStatus,
		dial:     mqtt.DialConn,
		logger:   logger.With("component", "stream"),
		status:   StatusDisconnected,
	}
}

// Start connects to the broker and establishes every subscription.
//
// A subscribe failure on any topic is fatal for the session: the connection
// is torn down and the subscriber reports disconnected rather than running
// partially subscribed.
func (s *Subscriber) Start(creds credentials.Credentials) error {
	if creds.Missing() {
		return mqtt.ErrMissingCredentials
	}

	s.mu.Lock()
	if s.conn != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: subscriber already started", mqtt.ErrConnectionFailed)
	}
	s.generation++
	gen := s.generation
	s.setStatusLocked(StatusConnecting)
	s.mu.Unlock()

	clientID := creds.ClientID
	if clientID == "" {
		clientID = mqtt.FallbackClientID("admin", "stream")
	}

	conn, err := s.dial(mqtt.Options{
		BrokerURL:      s.cfg.URL,
		Username:       creds.Username,
		Password:       creds.Password,
		ClientID:       clientID,
		ConnectTimeout: s.cfg.GetConnectTimeout(),
		KeepAlive:      s.cfg.GetKeepAlive(),
		OnConnectionLost: func(lostErr error) {
			s.handleConnectionLost(gen, lostErr)
		},
	})
	if err != nil {
		s.mu.Lock()
		if gen == s.generation {
			s.setStatusLocked(StatusDisconnected)
		}
		s.mu.Unlock()
		s.logger.Error("Event stream connection failed", "error", err)
		return err
	}

	for _, topic := range s.topics {
		if err := conn.Subscribe(topic, s.cfg.GetQoS(), func(t string, payload []byte) error {
			s.handleMessage(gen, t, payload)
			return nil
		}); err != nil {
			conn.Close()
			s.mu.Lock()
			if gen == s.generation {
				s.setStatusLocked(StatusDisconnected)
			}
			s.mu.Unlock()
			s.logger.Error("Event stream subscribe failed", "topic", topic, "error", err)
			return fmt.Errorf("%w: topic %s: %w", mqtt.ErrSubscribeFailed, topic, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		// Disconnected while we were still subscribing.
		conn.Close()
		return nil
	}
	s.conn = conn
	s.setStatusLocked(StatusConnected)
	s.logger.Info("Event stream connected", "topics", s.topics)
	return nil
}

// Disconnect tears the session down. Idempotent; safe to call when no
// connection is open. Message callbacks arriving after Disconnect are
// discarded.
func (s *Subscriber) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	if s.conn == nil {
		return
	}
	s.conn.Close()
	s.conn = nil
	s.setStatusLocked(StatusDisconnected)
	s.logger.Info("Event stream disconnected")
}

// Status returns the current connection status.
func (s *Subscriber) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// handleMessage decodes, normalizes, and forwards one inbound message.
// Decode failures are logged and dropped; they never affect the subscription.
func (s *Subscriber) handleMessage(gen uint64, topic string, data []byte) {
	s.mu.Lock()
	stale := gen != s.generation
	s.mu.Unlock()
	if stale {
		return
	}

	ev, err := DecodeEvent(data)
	if err != nil {
		s.logger.Warn("Dropping undecodable stream message",
			"topic", topic,
			"bytes", len(data),
			"error", err,
		)
		return
	}

	record := Normalize(ev)
	s.sink.Consume(record)
	s.logger.Debug("Stream event consumed",
		"topic", topic,
		"payment_id", record.ID,
	)
}

// handleConnectionLost records an unsolicited broker drop for the current
// session generation.
func (s *Subscriber) handleConnectionLost(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return
	}
	s.conn = nil
	s.setStatusLocked(StatusDisconnected)
	s.logger.Warn("Event stream connection lost", "error", err)
}

// setStatusLocked updates the status and fires the callback.
// Caller holds s.mu.
func (s *Subscriber) setStatusLocked(status Status) {
	if s.status == status {
		return
	}
	s.status = status
	if s.onStatus != nil {
		s.onStatus(status)
	}
}
