package command

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Action discriminates operation envelopes on the wire.
type Action string

// Supported operation actions.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ErrValidation is the class of all pre-flight envelope failures.
// Wrapped errors carry the specific user-legible message.
// Validation failures never open a socket.
var ErrValidation = errors.New("command: validation failed")

// SlotData carries the optional payload fields of a slot operation.
// Nil fields are published as explicit JSON nulls so the machine controller
// can distinguish "unset" from "zero".
type SlotData struct {
	MDBCode      *int    `json:"mdb_code"`
	Label        *string `json:"label"`
	ProductID    *int64  `json:"product_id"`
	MachineID    *int64  `json:"machine_id"`
	Capacity     *int    `json:"capacity"`
	CurrentStock *int    `json:"current_stock"`
}

// SlotPayload is the wire shape of a slot create/update operation.
type SlotPayload struct {
	ID           int64   `json:"id"`
	MDBCode      *int    `json:"mdb_code"`
	Label        *string `json:"label"`
	ProductID    *int64  `json:"product_id"`
	MachineID    *int64  `json:"machine_id"`
	Capacity     *int    `json:"capacity"`
	CurrentStock *int    `json:"current_stock"`
}

// SlotEnvelope is the wire envelope for slot create/update operations.
type SlotEnvelope struct {
	Action Action      `json:"action"`
	Slot   SlotPayload `json:"slot"`
}

// SlotDeleteEnvelope is the wire envelope for slot deletes.
// Deletes carry only the slot id.
type SlotDeleteEnvelope struct {
	Action Action `json:"action"`
	Slot   struct {
		ID int64 `json:"id"`
	} `json:"slot"`
}

// ProductData carries the fields of a product operation.
type ProductData struct {
	ID           int64  `json:"id"`
	EnterpriseID int64  `json:"enterprise_id"`
	Name         string `json:"name"`
}

// ProductPayload is the wire shape of a product operation.
type ProductPayload struct {
	ID           int64   `json:"id"`
	EnterpriseID int64   `json:"enterprise_id"`
	Name         *string `json:"name"`
}

// ProductEnvelope is the wire envelope for product operations.
type ProductEnvelope struct {
	Action  Action         `json:"action"`
	Product ProductPayload `json:"product"`
}

// RebootEnvelope is the wire envelope for machine reboot commands.
type RebootEnvelope struct {
	Action  string `json:"action"`
	Command string `json:"command"`
	Force   bool   `json:"force"`
}

// ValidateSlotOperation checks a slot operation before any network attempt.
//
// Rules:
//   - action must be create, update, or delete
//   - machine and slot ids are always required (they address the topic)
//   - mdb_code is mandatory for create and update; a delete needs only the id
func ValidateSlotOperation(action Action, machineID, slotID int64, data SlotData) error {
	if err := validateAction(action); err != nil {
		return err
	}
	if machineID <= 0 {
		return fmt.Errorf("%w: machine id is required", ErrValidation)
	}
	if slotID <= 0 {
		return fmt.Errorf("%w: slot id is required", ErrValidation)
	}
	if action != ActionDelete && data.MDBCode == nil {
		return fmt.Errorf("%w: slot mdb_code is required for %s operations", ErrValidation, action)
	}
	return nil
}

// ValidateProductOperation checks a product operation before any network attempt.
//
// Rules:
//   - action must be create, update, or delete
//   - product id and enterprise id are always required
//   - name is mandatory unless the action is delete
func ValidateProductOperation(action Action, data ProductData) error {
	if err := validateAction(action); err != nil {
		return err
	}
	if data.ID <= 0 {
		return fmt.Errorf("%w: product id is required", ErrValidation)
	}
	if data.EnterpriseID <= 0 {
		return fmt.Errorf("%w: enterprise id is required", ErrValidation)
	}
	if action != ActionDelete && data.Name == "" {
		return fmt.Errorf("%w: product name is required for %s operations", ErrValidation, action)
	}
	return nil
}

// validateAction rejects unknown action tags.
func validateAction(action Action) error {
	switch action {
	case ActionCreate, ActionUpdate, ActionDelete:
		return nil
	default:
		return fmt.Errorf("%w: unknown action %q", ErrValidation, action)
	}
}

// EncodeSlotOperation builds the JSON envelope for a slot operation.
// The caller must have validated the operation first.
//
// Deletes serialize as {"action":"delete","slot":{"id":N}}; create/update
// carry the full payload with unset optional fields as explicit nulls.
func EncodeSlotOperation(action Action, slotID int64, data SlotData) ([]byte, error) {
	if action == ActionDelete {
		env := SlotDeleteEnvelope{Action: action}
		env.Slot.ID = slotID
		return json.Marshal(env)
	}

	return json.Marshal(SlotEnvelope{
		Action: action,
		Slot: SlotPayload{
			ID:           slotID,
			MDBCode:      data.MDBCode,
			Label:        data.Label,
			ProductID:    data.ProductID,
			MachineID:    data.MachineID,
			Capacity:     data.Capacity,
			CurrentStock: data.CurrentStock,
		},
	})
}

// EncodeProductOperation builds the JSON envelope for a product operation.
// The caller must have validated the operation first.
func EncodeProductOperation(action Action, data ProductData) ([]byte, error) {
	payload := ProductPayload{
		ID:           data.ID,
		EnterpriseID: data.EnterpriseID,
	}
	if data.Name != "" {
		payload.Name = &data.Name
	}
	return json.Marshal(ProductEnvelope{
		Action:  action,
		Product: payload,
	})
}

// EncodeReboot builds the JSON envelope for a machine reboot command.
func EncodeReboot(force bool) ([]byte, error) {
	return json.Marshal(RebootEnvelope{
		Action:  "command",
		Command: "reboot",
		Force:   force,
	})
}
