package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/idea-vending/vendsync/internal/command"
)

// slotCommandRequest is the body for POST /commands/slots.
type slotCommandRequest struct {
	Action    command.Action   `json:"action"`
	MachineID int64            `json:"machine_id"`
	SlotID    int64            `json:"slot_id"`
	Slot      command.SlotData `json:"slot"`
}

// productCommandRequest is the body for POST /commands/products.
type productCommandRequest struct {
	Action  command.Action      `json:"action"`
	Product command.ProductData `json:"product"`
}

// rebootCommandRequest is the body for POST /commands/machines/{machineID}/reboot.
type rebootCommandRequest struct {
	Force bool `json:"force"`
}

// commandAccepted is the success response for command dispatch.
type commandAccepted struct {
	Status string `json:"status"`
	Topic  string `json:"topic,omitempty"`
}

// handleSlotCommand dispatches a slot create/update/delete to the machine.
func (s *Server) handleSlotCommand(w http.ResponseWriter, r *http.Request) {
	var req slotCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	target := fmt.Sprintf("machine:%d", req.MachineID)
	if s.dispatch != nil && !s.dispatch.Allow(target) {
		writeDispatchError(w, command.ErrRateLimited)
		return
	}

	creds := s.requestCredentials(r)
	err := s.publisher.PublishSlotOperation(r.Context(), creds, req.Action, req.MachineID, req.SlotID, req.Slot)
	if err != nil {
		writeDispatchError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, commandAccepted{Status: "published"})
}

// handleProductCommand dispatches a product create/update/delete to every
// machine of the enterprise.
func (s *Server) handleProductCommand(w http.ResponseWriter, r *http.Request) {
	var req productCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	target := fmt.Sprintf("enterprise:%d", req.Product.EnterpriseID)
	if s.dispatch != nil && !s.dispatch.Allow(target) {
		writeDispatchError(w, command.ErrRateLimited)
		return
	}

	creds := s.requestCredentials(r)
	if err := s.publisher.PublishProductOperation(r.Context(), creds, req.Action, req.Product); err != nil {
		writeDispatchError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, commandAccepted{Status: "published"})
}

// handleRebootCommand dispatches a reboot command to the machine.
func (s *Server) handleRebootCommand(w http.ResponseWriter, r *http.Request) {
	machineID, err := strconv.ParseInt(chi.URLParam(r, "machineID"), 10, 64)
	if err != nil || machineID <= 0 {
		writeBadRequest(w, "invalid machine id")
		return
	}

	var req rebootCommandRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return
		}
	}

	target := fmt.Sprintf("machine:%d", machineID)
	if s.dispatch != nil && !s.dispatch.Allow(target) {
		writeDispatchError(w, command.ErrRateLimited)
		return
	}

	creds := s.requestCredentials(r)
	if err := s.publisher.PublishReboot(r.Context(), creds, machineID, req.Force); err != nil {
		writeDispatchError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, commandAccepted{Status: "published"})
}
