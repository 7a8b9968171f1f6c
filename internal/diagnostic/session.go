package diagnostic

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/idea-vending/vendsync/internal/credentials"
	"github.com/idea-vending/vendsync/internal/infrastructure/config"
	"github.com/idea-vending/vendsync/internal/infrastructure/logging"
	"github.com/idea-vending/vendsync/internal/infrastructure/mqtt"
)

// State is the lifecycle state of the diagnostic session.
type State string

// Diagnostic session states, surfaced verbatim to the dashboard.
const (
	StateIdle               State = "idle"
	StateMissingCredentials State = "missing_credentials"
	StateConnecting         State = "connecting"
	StateConnected          State = "connected"
	StateDisconnected       State = "disconnected"
	StateError              State = "error"
)

// pingSource identifies this application in diagnostic ping payloads.
const pingSource = "idea-vending-admin"

// pingEnvelope is the wire shape of a diagnostic ping.
type pingEnvelope struct {
	Action string `json:"action"`
	Source string `json:"source"`
	SentAt string `json:"sentAt"`
}

// Status is the full diagnostic view the dashboard polls.
type Status struct {
	State State   `json:"status"`
	Log   []Entry `json:"log"`
}

// Session is the operator connectivity test harness.
//
// At most one broker connection is live at a time. Starting a new test tears
// down the previous connection first; callbacks from superseded connection
// attempts are discarded via a generation counter so a slow dial can never
// clobber the state of a newer one.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Session struct {
	cfg    config.MQTTConfig
	dial   mqtt.Dialer
	logger *logging.Logger

	mu         sync.Mutex
	state      State
	conn       mqtt.Conn
	generation uint64
	identity   string
	buf        logBuffer
}

// NewSession creates an idle diagnostic session using the production dialer.
func NewSession(cfg config.MQTTConfig, logger *logging.Logger) *Session {
	return &Session{
		cfg:    cfg,
		dial:   mqtt.DialConn,
		logger: logger.With("component", "diagnostic"),
		state:  StateIdle,
	}
}

// TestConnection opens a fresh broker connection under the given credentials
// and reports the resulting state.
//
// Any previous connection is torn down first, so repeat tests always exercise
// a full connect cycle. Missing credentials resolve immediately to
// StateMissingCredentials without opening a socket.
func (s *Session) TestConnection(creds credentials.Credentials) State {
	s.mu.Lock()

	// Supersede any in-flight attempt and drop the previous connection.
	s.generation++
	gen := s.generation
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}

	if creds.Missing() {
		s.state = StateMissingCredentials
		s.buf.add(LevelError, "MQTT credentials are not configured for this user")
		s.mu.Unlock()
		return StateMissingCredentials
	}

	s.identity = creds.DiagnosticIdentity()
	s.state = StateConnecting
	s.buf.add(LevelInfo, "Connecting to "+s.cfg.URL)
	s.mu.Unlock()

	clientID := creds.ClientID
	if clientID == "" {
		clientID = mqtt.FallbackClientID("admin", "diagnostic")
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

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		// A newer test or a disconnect superseded this attempt while it was
		// dialing. Its outcome no longer matters.
		if err == nil {
			conn.Close()
		}
		return s.state
	}

	if err != nil {
		s.state = StateError
		s.buf.add(LevelError, "Connection failed: "+err.Error())
		s.logger.Warn("Diagnostic connection failed", "error", err)
		return s.state
	}

	s.conn = conn
	s.state = StateConnected
	s.buf.add(LevelInfo, "Connected to broker")
	s.logger.Info("Diagnostic connection established")
	return s.state
}

// SendPing publishes a timestamped ping on the session's diagnostic topic.
//
// Pinging while not connected is a logged no-op, never an error: the
// dashboard fires pings on a timer and a ping racing a disconnect is routine.
func (s *Session) SendPing() {
	s.mu.Lock()
	if s.state != StateConnected || s.conn == nil {
		s.buf.add(LevelInfo, "Ping skipped: not connected")
		s.mu.Unlock()
		return
	}
	gen := s.generation
	conn := s.conn
	topic := mqtt.Topics{}.ConnectionTest(s.identity)
	s.mu.Unlock()

	payload, err := json.Marshal(pingEnvelope{
		Action: "ping",
		Source: pingSource,
		SentAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err == nil {
		err = conn.Publish(topic, s.cfg.GetQoS(), payload)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return
	}
	if err != nil {
		s.buf.add(LevelError, "Ping failed: "+err.Error())
		return
	}
	s.buf.add(LevelInfo, "Ping sent to "+topic)
}

// Disconnect tears down the live connection, if any.
//
// Idempotent: once the session is disconnected, further calls change nothing
// and add no log entries.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil && s.state != StateConnecting {
		return
	}

	s.generation++
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.state = StateDisconnected
	s.buf.add(LevelInfo, "Disconnected from broker")
}

// Status returns the current state and a newest-first copy of the activity log.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		State: s.state,
		Log:   s.buf.snapshot(),
	}
}

// ClearLog empties the activity log without touching the connection.
func (s *Session) ClearLog() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.clear()
}

// handleConnectionLost records an unsolicited broker drop. Callbacks from
// superseded connections are discarded.
func (s *Session) handleConnectionLost(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return
	}

	s.conn = nil
	s.state = StateDisconnected
	msg := "Connection lost"
	if err != nil {
		msg += ": " + err.Error()
	}
	s.buf.add(LevelError, msg)
	s.logger.Warn("Diagnostic connection lost", "error", err)
}
