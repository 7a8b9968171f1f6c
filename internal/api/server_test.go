package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/idea-vending/vendsync/internal/auth"
	"github.com/idea-vending/vendsync/internal/command"
	"github.com/idea-vending/vendsync/internal/credentials"
	"github.com/idea-vending/vendsync/internal/diagnostic"
	"github.com/idea-vending/vendsync/internal/infrastructure/config"
	"github.com/idea-vending/vendsync/internal/infrastructure/logging"
	"github.com/idea-vending/vendsync/internal/infrastructure/mqtt"
	"github.com/idea-vending/vendsync/internal/payment"
	"github.com/idea-vending/vendsync/internal/stream"
)

// stubPublisher records dispatched commands and returns a configurable error.
type stubPublisher struct {
	err error

	slotCalls    int
	lastCreds    credentials.Credentials
	lastAction   command.Action
	lastMachine  int64
	lastSlot     int64
	lastSlotData command.SlotData

	productCalls int
	lastProduct  command.ProductData

	rebootCalls int
	lastForce   bool
}

func (p *stubPublisher) PublishSlotOperation(_ context.Context, creds credentials.Credentials, action command.Action, machineID, slotID int64, data command.SlotData) error {
	p.slotCalls++
	p.lastCreds = creds
	p.lastAction = action
	p.lastMachine = machineID
	p.lastSlot = slotID
	p.lastSlotData = data
	return p.err
}

func (p *stubPublisher) PublishProductOperation(_ context.Context, creds credentials.Credentials, action command.Action, data command.ProductData) error {
	p.productCalls++
	p.lastCreds = creds
	p.lastAction = action
	p.lastProduct = data
	return p.err
}

func (p *stubPublisher) PublishReboot(_ context.Context, creds credentials.Credentials, machineID int64, force bool) error {
	p.rebootCalls++
	p.lastCreds = creds
	p.lastMachine = machineID
	p.lastForce = force
	return p.err
}

// stubDiagnostic records diagnostic calls.
type stubDiagnostic struct {
	state     diagnostic.State
	testCalls int
	pingCalls int
	discCalls int
	clears    int
	lastCreds credentials.Credentials
}

func (d *stubDiagnostic) TestConnection(creds credentials.Credentials) diagnostic.State {
	d.testCalls++
	d.lastCreds = creds
	if creds.Missing() {
		return diagnostic.StateMissingCredentials
	}
	return d.state
}

func (d *stubDiagnostic) SendPing()   { d.pingCalls++ }
func (d *stubDiagnostic) Disconnect() { d.discCalls++ }
func (d *stubDiagnostic) ClearLog()   { d.clears++ }

func (d *stubDiagnostic) Status() diagnostic.Status {
	return diagnostic.Status{State: d.state, Log: []diagnostic.Entry{}}
}

// stubRepo serves canned payment history.
type stubRepo struct {
	payments   []payment.Payment
	lastFilter payment.ListFilter
	err        error
}

func (r *stubRepo) Save(context.Context, payment.Payment) error { return nil }

func (r *stubRepo) List(_ context.Context, filter payment.ListFilter) ([]payment.Payment, error) {
	r.lastFilter = filter
	return r.payments, r.err
}

func (r *stubRepo) GetByPaymentID(context.Context, int64) (payment.Payment, error) {
	return payment.Payment{}, payment.ErrNotFound
}

// stubStream reports a fixed stream status.
type stubStream struct{ status stream.Status }

func (s *stubStream) Status() stream.Status { return s.status }
func (s *stubStream) Disconnect()           {}

const testJWTSecret = "api-test-secret-32-bytes-exactly"

type testEnv struct {
	server     *Server
	router     http.Handler
	publisher  *stubPublisher
	diagnostic *stubDiagnostic
	repo       *stubRepo
}

func newTestEnv(t *testing.T, opts ...func(*Deps)) *testEnv {
	t.Helper()

	pub := &stubPublisher{}
	diag := &stubDiagnostic{state: diagnostic.StateIdle}
	repo := &stubRepo{}

	deps := Deps{
		Config: config.APIConfig{Host: "127.0.0.1", Port: 0},
		WS:     config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10},
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{Secret: testJWTSecret},
		},
		Logger:     logging.Default(),
		Publisher:  pub,
		Diagnostic: diag,
		Stream:     &stubStream{status: stream.StatusConnected},
		Payments:   repo,
		Fallback: credentials.NewStaticResolver(config.MQTTCredentialsConfig{
			Username: "fallback-user",
			Password: "fallback-pass",
		}),
		Version: "test",
	}
	for _, opt := range opts {
		opt(&deps)
	}

	server, err := New(deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return &testEnv{
		server:     server,
		router:     server.buildRouter(),
		publisher:  pub,
		diagnostic: diag,
		repo:       repo,
	}
}

func (e *testEnv) request(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)

	token, err := auth.GenerateAccessToken(42, credentials.Credentials{
		Username: "jwt-user",
		Password: "jwt-pass",
		UserID:   42,
	}, testJWTSecret, 15)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) Error {
	t.Helper()
	var e Error
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
		t.Fatalf("decoding error response: %v (body %q)", err, rec.Body.String())
	}
	return e
}

func TestHealthNoAuth(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestAuthRequiredWithoutToken(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if e := decodeError(t, rec); e.Code != ErrCodeUnauthorized {
		t.Errorf("code = %q, want %q", e.Code, ErrCodeUnauthorized)
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthPermissiveWithoutSecret(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) {
		d.Security.JWT.Secret = ""
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestSlotCommandHappyPath(t *testing.T) {
	env := newTestEnv(t)

	body := `{"action":"update","machine_id":12,"slot_id":34,"slot":{"mdb_code":7,"capacity":10}}`
	rec := env.request(t, http.MethodPost, "/api/v1/commands/slots", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %q)", rec.Code, rec.Body.String())
	}
	if env.publisher.slotCalls != 1 {
		t.Fatalf("slotCalls = %d, want 1", env.publisher.slotCalls)
	}
	if env.publisher.lastAction != command.ActionUpdate {
		t.Errorf("action = %q, want update", env.publisher.lastAction)
	}
	if env.publisher.lastMachine != 12 || env.publisher.lastSlot != 34 {
		t.Errorf("target = machine %d slot %d, want 12/34", env.publisher.lastMachine, env.publisher.lastSlot)
	}
	if env.publisher.lastSlotData.MDBCode == nil || *env.publisher.lastSlotData.MDBCode != 7 {
		t.Errorf("mdb_code not propagated: %+v", env.publisher.lastSlotData)
	}
}

func TestSlotCommandUsesTokenCredentials(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/v1/commands/slots",
		`{"action":"delete","machine_id":12,"slot_id":34,"slot":{}}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if env.publisher.lastCreds.Username != "jwt-user" {
		t.Errorf("credentials username = %q, want token identity", env.publisher.lastCreds.Username)
	}
	if env.publisher.lastCreds.UserID != 42 {
		t.Errorf("credentials user id = %d, want 42", env.publisher.lastCreds.UserID)
	}
}

func TestSlotCommandInvalidBody(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/v1/commands/slots", `{not json`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if env.publisher.slotCalls != 0 {
		t.Errorf("publisher called despite invalid body")
	}
}

func TestSlotCommandErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", command.ErrValidation, http.StatusBadRequest, ErrCodeValidation},
		{"missing credentials", mqtt.ErrMissingCredentials, http.StatusForbidden, ErrCodeMissingCredentials},
		{"missing broker url", mqtt.ErrMissingBrokerURL, http.StatusInternalServerError, ErrCodeConfiguration},
		{"connect timeout", mqtt.ErrConnectTimeout, http.StatusGatewayTimeout, ErrCodeTimeout},
		{"ack timeout", mqtt.ErrAckTimeout, http.StatusGatewayTimeout, ErrCodeTimeout},
		{"connection failed", mqtt.ErrConnectionFailed, http.StatusBadGateway, ErrCodeNetwork},
		{"publish failed", mqtt.ErrPublishFailed, http.StatusBadGateway, ErrCodePublish},
		{"closed prematurely", mqtt.ErrClosedPrematurely, http.StatusBadGateway, ErrCodeNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.publisher.err = tt.err

			rec := env.request(t, http.MethodPost, "/api/v1/commands/slots",
				`{"action":"update","machine_id":12,"slot_id":34,"slot":{"mdb_code":7}}`)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if e := decodeError(t, rec); e.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", e.Code, tt.wantCode)
			}
		})
	}
}

func TestBrokerFailureMessageStatesBothFacts(t *testing.T) {
	env := newTestEnv(t)
	env.publisher.err = mqtt.ErrConnectTimeout

	rec := env.request(t, http.MethodPost, "/api/v1/commands/slots",
		`{"action":"update","machine_id":12,"slot_id":34,"slot":{"mdb_code":7}}`)

	e := decodeError(t, rec)
	if !strings.Contains(e.Message, "saved") {
		t.Errorf("message %q does not state the record was saved", e.Message)
	}
	if !strings.Contains(e.Message, "not reached the machine") {
		t.Errorf("message %q does not state the machine was not updated", e.Message)
	}
}

func TestCommandRateLimited(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) {
		d.Dispatch = command.NewDispatchPolicy(1, 2)
	})

	body := `{"action":"update","machine_id":12,"slot_id":34,"slot":{"mdb_code":7}}`
	var last *httptest.ResponseRecorder
	for i := 0; i < 5; i++ {
		last = env.request(t, http.MethodPost, "/api/v1/commands/slots", body)
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429 after burst exhausted", last.Code)
	}
	if e := decodeError(t, last); e.Code != ErrCodeRateLimited {
		t.Errorf("code = %q, want %q", e.Code, ErrCodeRateLimited)
	}
}

func TestProductCommand(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/v1/commands/products",
		`{"action":"create","product":{"id":5,"enterprise_id":2,"name":"Cola"}}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if env.publisher.productCalls != 1 {
		t.Fatalf("productCalls = %d, want 1", env.publisher.productCalls)
	}
	if env.publisher.lastProduct.ID != 5 || env.publisher.lastProduct.EnterpriseID != 2 {
		t.Errorf("product = %+v, want id 5 enterprise 2", env.publisher.lastProduct)
	}
}

func TestRebootCommand(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/v1/commands/machines/12/reboot", `{"force":true}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if env.publisher.rebootCalls != 1 {
		t.Fatalf("rebootCalls = %d, want 1", env.publisher.rebootCalls)
	}
	if env.publisher.lastMachine != 12 || !env.publisher.lastForce {
		t.Errorf("reboot = machine %d force %v, want 12/true", env.publisher.lastMachine, env.publisher.lastForce)
	}
}

func TestRebootCommandEmptyBody(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/v1/commands/machines/12/reboot", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if env.publisher.lastForce {
		t.Error("force = true, want false for empty body")
	}
}

func TestRebootCommandInvalidMachineID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/v1/commands/machines/abc/reboot", "")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDiagnosticTest(t *testing.T) {
	env := newTestEnv(t)
	env.diagnostic.state = diagnostic.StateConnected

	rec := env.request(t, http.MethodPost, "/api/v1/diagnostics/test", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if env.diagnostic.testCalls != 1 {
		t.Fatalf("testCalls = %d, want 1", env.diagnostic.testCalls)
	}
	if env.diagnostic.lastCreds.Username != "jwt-user" {
		t.Errorf("diagnostic credentials = %q, want token identity", env.diagnostic.lastCreds.Username)
	}

	var status diagnostic.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	if status.State != diagnostic.StateConnected {
		t.Errorf("state = %q, want connected", status.State)
	}
}

func TestDiagnosticPingAndDisconnect(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.request(t, http.MethodPost, "/api/v1/diagnostics/ping", ""); rec.Code != http.StatusOK {
		t.Fatalf("ping status = %d, want 200", rec.Code)
	}
	if rec := env.request(t, http.MethodPost, "/api/v1/diagnostics/disconnect", ""); rec.Code != http.StatusOK {
		t.Fatalf("disconnect status = %d, want 200", rec.Code)
	}
	if rec := env.request(t, http.MethodDelete, "/api/v1/diagnostics/log", ""); rec.Code != http.StatusOK {
		t.Fatalf("clear log status = %d, want 200", rec.Code)
	}

	if env.diagnostic.pingCalls != 1 || env.diagnostic.discCalls != 1 || env.diagnostic.clears != 1 {
		t.Errorf("calls = ping %d disconnect %d clear %d, want 1 each",
			env.diagnostic.pingCalls, env.diagnostic.discCalls, env.diagnostic.clears)
	}
}

func TestStreamStatus(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/api/v1/stream/status", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "connected") {
		t.Errorf("body = %q, want stream status connected", rec.Body.String())
	}
}

func TestStreamStatusDisabled(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) {
		d.Stream = nil
	})

	rec := env.request(t, http.MethodGet, "/api/v1/stream/status", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "disabled") {
		t.Errorf("body = %q, want disabled", rec.Body.String())
	}
}

func TestListPaymentsFilters(t *testing.T) {
	env := newTestEnv(t)
	env.repo.payments = []payment.Payment{{ID: 1, MachineID: 5}}

	rec := env.request(t, http.MethodGet, "/api/v1/payments?machine_id=5&failed=true&limit=25", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %q)", rec.Code, rec.Body.String())
	}
	if env.repo.lastFilter.MachineID != 5 {
		t.Errorf("filter machine = %d, want 5", env.repo.lastFilter.MachineID)
	}
	if !env.repo.lastFilter.OnlyFailed {
		t.Error("filter OnlyFailed = false, want true")
	}
	if env.repo.lastFilter.Limit != 25 {
		t.Errorf("filter limit = %d, want 25", env.repo.lastFilter.Limit)
	}
}

func TestListPaymentsInvalidParams(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{
		"/api/v1/payments?machine_id=zero",
		"/api/v1/payments?limit=-1",
		"/api/v1/payments?failed=maybe",
	} {
		if rec := env.request(t, http.MethodGet, path, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rec.Code)
		}
	}
}

func TestListPaymentsEmptyIsArray(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/api/v1/payments", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"payments":[]`) {
		t.Errorf("body = %q, want empty array not null", rec.Body.String())
	}
}

func TestRequestIDHeader(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header not set")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "caller-supplied")
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "caller-supplied" {
		t.Errorf("X-Request-ID = %q, want caller-supplied", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/payments", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://dashboard.local" {
		t.Errorf("Allow-Origin = %q, want echoed origin", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}
