package stream

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/idea-vending/vendsync/internal/payment"
)

// Decode failure classes. Both mean the message is dropped, never that the
// subscription terminates.
var (
	// ErrDecode indicates the payload was not valid JSON.
	ErrDecode = errors.New("stream: message is not valid JSON")

	// ErrUnknownShape indicates valid JSON that matches neither event shape.
	ErrUnknownShape = errors.New("stream: message matches no known event shape")
)

// Event is the tagged union of the two legal inbound event shapes.
// Exactly PaymentStatusEvent and SaleEvent implement it.
type Event interface {
	isStreamEvent()
}

// PaymentStatusEvent is a payment status change carrying an almost-complete
// payment object.
type PaymentStatusEvent struct {
	Payment RawPayment
}

func (PaymentStatusEvent) isStreamEvent() {}

// SaleEvent is a completed sale carrying raw gateway transaction fields.
type SaleEvent struct {
	Sale RawSale
}

func (SaleEvent) isStreamEvent() {}

// RawPayment is the wire shape inside a payment_status event. Every field is
// optional; normalization fills the defaults.
type RawPayment struct {
	ID                *int64                  `json:"id"`
	Successful        *bool                   `json:"successful"`
	Amount            *float64                `json:"amount"`
	Date              *string                 `json:"date"`
	Product           *string                 `json:"product"`
	ResponseCode      *int                    `json:"response_code"`
	ResponseMessage   *string                 `json:"response_message"`
	CommerceCode      *string                 `json:"commerce_code"`
	TerminalID        *string                 `json:"terminal_id"`
	AuthorizationCode *int64                  `json:"authorization_code"`
	LastDigits        *string                 `json:"last_digits"`
	OperationNumber   *string                 `json:"operation_number"`
	CardType          *string                 `json:"card_type"`
	CardBrand         *string                 `json:"card_brand"`
	ShareType         *string                 `json:"share_type"`
	SharesNumber      *int                    `json:"shares_number"`
	SharesAmount      *float64                `json:"shares_amount"`
	MachineID         *int64                  `json:"machine_id"`
	EnterpriseID      *int64                  `json:"enterprise_id"`
	MachineName       *string                 `json:"machine_name"`
	Machine           *payment.MachineSummary `json:"machine"`
	CreatedAt         *string                 `json:"created_at"`
	UpdatedAt         *string                 `json:"updated_at"`
}

// RawSale is the wire shape inside a create-action sale event. The gateway
// reports timestamps as 6-digit strings (transaction_date ddMMyy,
// transaction_time HHmmss) and the response code as a numeric string.
type RawSale struct {
	ID                *int64   `json:"id"`
	MachineID         *int64   `json:"machine_id"`
	EnterpriseID      *int64   `json:"enterprise_id"`
	MachineName       *string  `json:"machine_name"`
	Product           *string  `json:"product"`
	Amount            *float64 `json:"amount"`
	TransactionDate   *string  `json:"transaction_date"`
	TransactionTime   *string  `json:"transaction_time"`
	FeesQuantity      *int     `json:"fees_quantity"`
	ResponseCode      *string  `json:"response_code"`
	ResponseMessage   *string  `json:"response_message"`
	AuthorizationCode *string  `json:"authorization_code"`
	PaymentTypeCode   *string  `json:"payment_type_code"`
	CardBrand         *string  `json:"card_brand"`
	LastDigits        *string  `json:"last_digits"`
	CommerceCode      *string  `json:"commerce_code"`
	TerminalID        *string  `json:"terminal_id"`
	OperationNumber   *string  `json:"operation_number"`
	ShareType         *string  `json:"share_type"`
	SharesAmount      *float64 `json:"shares_amount"`
}

// envelopeShape is the structural sniff used to discriminate inbound messages.
type envelopeShape struct {
	Action  string           `json:"action"`
	Payment *json.RawMessage `json:"payment"`
	Sale    *json.RawMessage `json:"sale"`
}

// DecodeEvent classifies an inbound message structurally and decodes it into
// the matching event variant.
//
// Classification is structural, not tag-only: a payment_status event is
// recognised by the presence of its payment object, a sale event by the
// create action plus its sale object. Anything else is ErrUnknownShape.
func DecodeEvent(data []byte) (Event, error) {
	var p envelopeShape
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	switch {
	case p.Payment != nil:
		var raw RawPayment
		if err := json.Unmarshal(*p.Payment, &raw); err != nil {
			return nil, fmt.Errorf("%w: payment object: %w", ErrDecode, err)
		}
		return PaymentStatusEvent{Payment: raw}, nil

	case p.Action == "create" && p.Sale != nil:
		var raw RawSale
		if err := json.Unmarshal(*p.Sale, &raw); err != nil {
			return nil, fmt.Errorf("%w: sale object: %w", ErrDecode, err)
		}
		return SaleEvent{Sale: raw}, nil

	default:
		return nil, ErrUnknownShape
	}
}
