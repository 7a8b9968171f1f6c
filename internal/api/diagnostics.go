package api

import (
	"net/http"

	"github.com/idea-vending/vendsync/internal/diagnostic"
)

// handleDiagnosticTest starts a broker connection test under the caller's
// credentials and returns the resulting state plus the session log.
func (s *Server) handleDiagnosticTest(w http.ResponseWriter, r *http.Request) {
	creds := s.requestCredentials(r)
	state := s.diagnostic.TestConnection(creds)

	status := http.StatusOK
	if state == diagnostic.StateMissingCredentials {
		status = http.StatusForbidden
	}
	writeJSON(w, status, s.diagnostic.Status())
}

// handleDiagnosticPing sends a test message over the diagnostic connection.
// A ping without a connection is not an error; the outcome lands in the log.
func (s *Server) handleDiagnosticPing(w http.ResponseWriter, _ *http.Request) {
	s.diagnostic.SendPing()
	writeJSON(w, http.StatusOK, s.diagnostic.Status())
}

// handleDiagnosticDisconnect tears down the diagnostic connection.
func (s *Server) handleDiagnosticDisconnect(w http.ResponseWriter, _ *http.Request) {
	s.diagnostic.Disconnect()
	writeJSON(w, http.StatusOK, s.diagnostic.Status())
}

// handleDiagnosticStatus returns the current state and log without side effects.
func (s *Server) handleDiagnosticStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.diagnostic.Status())
}

// handleDiagnosticClearLog empties the session log, keeping the connection state.
func (s *Server) handleDiagnosticClearLog(w http.ResponseWriter, _ *http.Request) {
	s.diagnostic.ClearLog()
	writeJSON(w, http.StatusOK, s.diagnostic.Status())
}
