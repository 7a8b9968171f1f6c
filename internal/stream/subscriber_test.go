package stream

import (
	"errors"
	"sync"
	"testing"

	"github.com/idea-vending/vendsync/internal/credentials"
	"github.com/idea-vending/vendsync/internal/infrastructure/config"
	"github.com/idea-vending/vendsync/internal/infrastructure/logging"
	"github.com/idea-vending/vendsync/internal/infrastructure/mqtt"
	"github.com/idea-vending/vendsync/internal/payment"
)

type fakeConn struct {
	mu           sync.Mutex
	subs         map[string]mqtt.MessageHandler
	subscribeErr error
	closed       int
}

func newFakeConn() *fakeConn {
	return &fakeConn{subs: make(map[string]mqtt.MessageHandler)}
}

func (c *fakeConn) Publish(string, byte, []byte) error { return nil }

func (c *fakeConn) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subscribeErr != nil {
		return c.subscribeErr
	}
	c.subs[topic] = handler
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed++
	c.mu.Unlock()
}

// deliver simulates an inbound broker message on a subscribed topic.
func (c *fakeConn) deliver(t *testing.T, topic string, payload string) {
	t.Helper()
	c.mu.Lock()
	handler, ok := c.subs[topic]
	c.mu.Unlock()
	if !ok {
		t.Fatalf("no subscription for topic %s", topic)
	}
	_ = handler(topic, []byte(payload))
}

type fakeDialer struct {
	mu      sync.Mutex
	dials   int
	conn    *fakeConn
	lastOpt mqtt.Options
	dialErr error
}

func (d *fakeDialer) dial(opts mqtt.Options) (mqtt.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	d.lastOpt = opts
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	return d.conn, nil
}

type captureSink struct {
	mu       sync.Mutex
	payments []payment.Payment
}

func (s *captureSink) Consume(p payment.Payment) {
	s.mu.Lock()
	s.payments = append(s.payments, p)
	s.mu.Unlock()
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payments)
}

func testSubscriber(d *fakeDialer, sink Sink, onStatus func(Status)) *Subscriber {
	sub := NewSubscriber(config.MQTTConfig{
		URL:            "tcp://broker.test:1883",
		QoS:            1,
		ConnectTimeout: 10,
		KeepAlive:      30,
	}, nil, sink, onStatus, logging.Default())
	sub.dial = d.dial
	return sub
}

func testCreds() credentials.Credentials {
	return credentials.Credentials{Username: "fleet", Password: "secret"}
}

// ===== Lifecycle =====

func TestStartSubscribesDefaultWildcards(t *testing.T) {
	dialer := &fakeDialer{conn: newFakeConn()}
	var statuses []Status
	sub := testSubscriber(dialer, &captureSink{}, func(st Status) { statuses = append(statuses, st) })

	if err := sub.Start(testCreds()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if _, ok := dialer.conn.subs["machines/+/payments"]; !ok {
		t.Error("missing subscription on machines/+/payments")
	}
	if _, ok := dialer.conn.subs["enterprises/+/sales"]; !ok {
		t.Error("missing subscription on enterprises/+/sales")
	}
	if sub.Status() != StatusConnected {
		t.Errorf("Status() = %v, want connected", sub.Status())
	}

	want := []Status{StatusConnecting, StatusConnected}
	if len(statuses) != len(want) || statuses[0] != want[0] || statuses[1] != want[1] {
		t.Errorf("status callbacks = %v, want %v", statuses, want)
	}
}

func TestStartScopedTopics(t *testing.T) {
	dialer := &fakeDialer{conn: newFakeConn()}
	sub := NewSubscriber(config.MQTTConfig{URL: "tcp://broker.test:1883", QoS: 1},
		[]string{"machines/5/payments"}, &captureSink{}, nil, logging.Default())
	sub.dial = dialer.dial

	if err := sub.Start(testCreds()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if len(dialer.conn.subs) != 1 {
		t.Errorf("subscriptions = %d, want 1 scoped topic only", len(dialer.conn.subs))
	}
}

func TestStartMissingCredentials(t *testing.T) {
	dialer := &fakeDialer{conn: newFakeConn()}
	sub := testSubscriber(dialer, &captureSink{}, nil)

	err := sub.Start(credentials.Credentials{})
	if !errors.Is(err, mqtt.ErrMissingCredentials) {
		t.Fatalf("Start() error = %v, want ErrMissingCredentials", err)
	}
	if dialer.dials != 0 {
		t.Errorf("dials = %d, want 0", dialer.dials)
	}
}

func TestStartSubscribeFailureIsFatal(t *testing.T) {
	conn := newFakeConn()
	conn.subscribeErr = errors.New("not authorised")
	dialer := &fakeDialer{conn: conn}
	sub := testSubscriber(dialer, &captureSink{}, nil)

	err := sub.Start(testCreds())
	if !errors.Is(err, mqtt.ErrSubscribeFailed) {
		t.Fatalf("Start() error = %v, want ErrSubscribeFailed", err)
	}
	if conn.closed == 0 {
		t.Error("connection not torn down after subscribe failure")
	}
	if sub.Status() != StatusDisconnected {
		t.Errorf("Status() = %v, want disconnected (never partially subscribed)", sub.Status())
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	dialer := &fakeDialer{conn: newFakeConn()}
	var statuses []Status
	sub := testSubscriber(dialer, &captureSink{}, func(st Status) { statuses = append(statuses, st) })

	if err := sub.Start(testCreds()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	sub.Disconnect()
	sub.Disconnect()

	if dialer.conn.closed != 1 {
		t.Errorf("connection closed %d times, want 1", dialer.conn.closed)
	}
	n := 0
	for _, st := range statuses {
		if st == StatusDisconnected {
			n++
		}
	}
	if n != 1 {
		t.Errorf("disconnected callbacks = %d, want 1", n)
	}
}

func TestDisconnectWithoutStartIsNoop(t *testing.T) {
	sub := testSubscriber(&fakeDialer{conn: newFakeConn()}, &captureSink{}, nil)
	sub.Disconnect()
	if sub.Status() != StatusDisconnected {
		t.Errorf("Status() = %v, want disconnected", sub.Status())
	}
}

// ===== Message handling =====

func TestInboundEventsReachSink(t *testing.T) {
	dialer := &fakeDialer{conn: newFakeConn()}
	sink := &captureSink{}
	sub := testSubscriber(dialer, sink, nil)

	if err := sub.Start(testCreds()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	dialer.conn.deliver(t, "machines/+/payments",
		`{"event":"payment_status","payment":{"id":77,"successful":true,"amount":1500}}`)
	dialer.conn.deliver(t, "enterprises/+/sales",
		`{"action":"create","sale":{"id":9,"response_code":"0","amount":1200}}`)

	if sink.count() != 2 {
		t.Fatalf("sink received %d records, want 2", sink.count())
	}
	if sink.payments[0].ID != 77 || !sink.payments[0].Successful {
		t.Errorf("payment record = %+v", sink.payments[0])
	}
	if sink.payments[1].ID != 9 || !sink.payments[1].Successful {
		t.Errorf("sale record = %+v", sink.payments[1])
	}
}

func TestMalformedMessagesAreDroppedSessionSurvives(t *testing.T) {
	dialer := &fakeDialer{conn: newFakeConn()}
	sink := &captureSink{}
	sub := testSubscriber(dialer, sink, nil)

	if err := sub.Start(testCreds()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	dialer.conn.deliver(t, "machines/+/payments", `not json at all`)
	dialer.conn.deliver(t, "machines/+/payments", `{"shape":"unknown"}`)
	dialer.conn.deliver(t, "machines/+/payments",
		`{"event":"payment_status","payment":{"id":1}}`)

	if sink.count() != 1 {
		t.Errorf("sink received %d records, want 1 (garbage dropped)", sink.count())
	}
	if sub.Status() != StatusConnected {
		t.Errorf("Status() = %v, want connected after malformed input", sub.Status())
	}
}

func TestMessagesAfterDisconnectAreDiscarded(t *testing.T) {
	dialer := &fakeDialer{conn: newFakeConn()}
	sink := &captureSink{}
	sub := testSubscriber(dialer, sink, nil)

	if err := sub.Start(testCreds()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	sub.Disconnect()

	dialer.conn.deliver(t, "machines/+/payments",
		`{"event":"payment_status","payment":{"id":1}}`)

	if sink.count() != 0 {
		t.Errorf("sink received %d records after disconnect, want 0", sink.count())
	}
}

func TestConnectionLostReportsDisconnected(t *testing.T) {
	dialer := &fakeDialer{conn: newFakeConn()}
	sub := testSubscriber(dialer, &captureSink{}, nil)

	if err := sub.Start(testCreds()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	dialer.lastOpt.OnConnectionLost(errors.New("EOF"))

	if sub.Status() != StatusDisconnected {
		t.Errorf("Status() = %v, want disconnected after broker drop", sub.Status())
	}
}

func TestStaleConnectionLostIgnored(t *testing.T) {
	dialer := &fakeDialer{conn: newFakeConn()}
	sub := testSubscriber(dialer, &captureSink{}, nil)

	if err := sub.Start(testCreds()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	lost := dialer.lastOpt.OnConnectionLost
	sub.Disconnect()

	// The old connection's lost callback must not disturb the settled state.
	lost(errors.New("EOF"))
	if sub.Status() != StatusDisconnected {
		t.Errorf("Status() = %v, want disconnected", sub.Status())
	}
}

func TestMultiSinkFansOut(t *testing.T) {
	a := &captureSink{}
	b := &captureSink{}
	MultiSink{a, b}.Consume(payment.Payment{ID: 1})

	if a.count() != 1 || b.count() != 1 {
		t.Errorf("fan-out counts = %d/%d, want 1/1", a.count(), b.count())
	}
}
