package api

import (
	"net/http"
	"strconv"

	"github.com/idea-vending/vendsync/internal/payment"
)

// maxListLimit caps the payment history page size.
const maxListLimit = 500

// handleListPayments returns stored payment history, newest first.
//
// Query parameters: machine_id, enterprise_id, failed (only failed payments
// when "true"), limit.
func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter payment.ListFilter

	if v := q.Get("machine_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			writeBadRequest(w, "invalid machine_id")
			return
		}
		filter.MachineID = id
	}
	if v := q.Get("enterprise_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			writeBadRequest(w, "invalid enterprise_id")
			return
		}
		filter.EnterpriseID = id
	}
	if v := q.Get("failed"); v != "" {
		only, err := strconv.ParseBool(v)
		if err != nil {
			writeBadRequest(w, "invalid failed flag")
			return
		}
		filter.OnlyFailed = only
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 || limit > maxListLimit {
			writeBadRequest(w, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	payments, err := s.payments.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing payments", "error", err)
		writeInternalError(w, "failed to list payments")
		return
	}
	if payments == nil {
		payments = []payment.Payment{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"payments": payments,
		"count":    len(payments),
	})
}
