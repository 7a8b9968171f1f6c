// Package payment defines the normalized payment record and its storage.
//
// Inbound payment-status and sale events, whatever their raw gateway shape,
// are projected into the single Payment type below before anything else in
// the system touches them.
package payment

// Card type classifications derived from gateway payment type codes.
const (
	CardTypeDebit  = "debit"
	CardTypeCredit = "credit"
)

// Normalization defaults. Any optional field missing from an inbound event
// degrades to one of these instead of failing the event.
const (
	DefaultText       = "N/D"
	DefaultCode       = -1
	DefaultCardBrand  = "Desconocida"
	DefaultLastDigits = "0000"
)

// MachineSummary is the nested machine reference optionally carried by
// payment status events.
type MachineSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Payment is the normalized record both stream event shapes project into.
//
// String fields are never empty-by-accident: normalization fills documented
// defaults for anything the gateway omitted. Date, CreatedAt, and UpdatedAt
// are ISO 8601 timestamps.
type Payment struct {
	ID                int64           `json:"id"`
	Successful        bool            `json:"successful"`
	Amount            float64         `json:"amount"`
	Date              string          `json:"date"`
	Product           string          `json:"product"`
	ResponseCode      int             `json:"response_code"`
	ResponseMessage   string          `json:"response_message"`
	CommerceCode      string          `json:"commerce_code"`
	TerminalID        string          `json:"terminal_id"`
	AuthorizationCode int64           `json:"authorization_code"`
	LastDigits        string          `json:"last_digits"`
	OperationNumber   string          `json:"operation_number"`
	CardType          string          `json:"card_type,omitempty"`
	CardBrand         string          `json:"card_brand"`
	ShareType         string          `json:"share_type"`
	SharesNumber      int             `json:"shares_number"`
	SharesAmount      float64         `json:"shares_amount"`
	MachineID         int64           `json:"machine_id"`
	EnterpriseID      int64           `json:"enterprise_id"`
	MachineName       string          `json:"machine_name"`
	Machine           *MachineSummary `json:"machine,omitempty"`
	CreatedAt         string          `json:"created_at"`
	UpdatedAt         string          `json:"updated_at"`
}
