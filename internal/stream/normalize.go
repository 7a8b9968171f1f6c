package stream

import (
	"strconv"
	"time"

	"github.com/idea-vending/vendsync/internal/payment"
)

// Gateway 6-digit timestamp layouts (transaction_date / transaction_time).
const (
	saleDateLayout = "020106"
	saleTimeLayout = "150405"
)

// Normalize projects any decoded event into a payment record.
//
// Normalization is total: it never fails, whatever fields the event omitted.
// Missing optional fields degrade to the documented defaults ("N/D", -1,
// "Desconocida", "0000", current timestamp).
func Normalize(ev Event) payment.Payment {
	switch e := ev.(type) {
	case PaymentStatusEvent:
		return normalizePaymentStatus(e.Payment)
	case SaleEvent:
		return normalizeSale(e.Sale)
	default:
		// Unreachable: DecodeEvent only produces the two variants above.
		return payment.Payment{
			ResponseCode:      payment.DefaultCode,
			AuthorizationCode: payment.DefaultCode,
			CardBrand:         payment.DefaultCardBrand,
			LastDigits:        payment.DefaultLastDigits,
			Date:              nowISO(),
		}
	}
}

// normalizePaymentStatus maps a payment_status event payload.
func normalizePaymentStatus(raw RawPayment) payment.Payment {
	now := nowISO()
	return payment.Payment{
		ID:                int64Or(raw.ID, 0),
		Successful:        boolOr(raw.Successful, false),
		Amount:            floatOr(raw.Amount, 0),
		Date:              textOr(raw.Date, now),
		Product:           textOr(raw.Product, payment.DefaultText),
		ResponseCode:      intOr(raw.ResponseCode, payment.DefaultCode),
		ResponseMessage:   textOr(raw.ResponseMessage, payment.DefaultText),
		CommerceCode:      textOr(raw.CommerceCode, payment.DefaultText),
		TerminalID:        textOr(raw.TerminalID, payment.DefaultText),
		AuthorizationCode: int64Or(raw.AuthorizationCode, payment.DefaultCode),
		LastDigits:        textOr(raw.LastDigits, payment.DefaultLastDigits),
		OperationNumber:   textOr(raw.OperationNumber, payment.DefaultText),
		CardType:          textOr(raw.CardType, ""),
		CardBrand:         textOr(raw.CardBrand, payment.DefaultCardBrand),
		ShareType:         textOr(raw.ShareType, payment.DefaultText),
		SharesNumber:      intOr(raw.SharesNumber, 0),
		SharesAmount:      floatOr(raw.SharesAmount, 0),
		MachineID:         int64Or(raw.MachineID, 0),
		EnterpriseID:      int64Or(raw.EnterpriseID, 0),
		MachineName:       textOr(raw.MachineName, payment.DefaultText),
		Machine:           raw.Machine,
		CreatedAt:         textOr(raw.CreatedAt, now),
		UpdatedAt:         textOr(raw.UpdatedAt, now),
	}
}

// normalizeSale maps a sale event payload, converting the gateway's raw
// transaction fields into the normalized record.
func normalizeSale(raw RawSale) payment.Payment {
	now := nowISO()
	responseCode := numericTextOr(raw.ResponseCode, payment.DefaultCode)
	return payment.Payment{
		ID:         int64Or(raw.ID, 0),
		Successful: responseCode == 0,
		Amount:     floatOr(raw.Amount, 0),
		Date:       saleTimestamp(raw.TransactionDate, raw.TransactionTime),
		Product:    textOr(raw.Product, payment.DefaultText),

		ResponseCode:      responseCode,
		ResponseMessage:   textOr(raw.ResponseMessage, payment.DefaultText),
		CommerceCode:      textOr(raw.CommerceCode, payment.DefaultText),
		TerminalID:        textOr(raw.TerminalID, payment.DefaultText),
		AuthorizationCode: int64(numericTextOr(raw.AuthorizationCode, payment.DefaultCode)),
		LastDigits:        textOr(raw.LastDigits, payment.DefaultLastDigits),
		OperationNumber:   textOr(raw.OperationNumber, payment.DefaultText),

		CardType:  cardTypeFromPaymentCode(raw.PaymentTypeCode),
		CardBrand: textOr(raw.CardBrand, payment.DefaultCardBrand),

		ShareType:    textOr(raw.ShareType, payment.DefaultText),
		SharesNumber: intOr(raw.FeesQuantity, 0),
		SharesAmount: floatOr(raw.SharesAmount, 0),

		MachineID:    int64Or(raw.MachineID, 0),
		EnterpriseID: int64Or(raw.EnterpriseID, 0),
		MachineName:  textOr(raw.MachineName, payment.DefaultText),

		CreatedAt: now,
		UpdatedAt: now,
	}
}

// cardTypeFromPaymentCode maps gateway payment type codes to card types.
//
// VD is debit; the credit family covers standard (VN), instalments (VC, SI,
// S2) and deferred instalments (NC). Unknown codes pass through raw so
// nothing is silently misclassified; absent codes yield empty.
func cardTypeFromPaymentCode(code *string) string {
	if code == nil || *code == "" {
		return ""
	}
	switch *code {
	case "VD":
		return payment.CardTypeDebit
	case "VN", "VC", "SI", "S2", "NC":
		return payment.CardTypeCredit
	default:
		return *code
	}
}

// saleTimestamp combines the gateway's 6-digit date and time strings into an
// ISO 8601 timestamp. Any parse failure degrades to the current time.
func saleTimestamp(date, clock *string) string {
	if date == nil {
		return nowISO()
	}
	d, err := time.Parse(saleDateLayout, *date)
	if err != nil {
		return nowISO()
	}

	if clock != nil {
		if t, err := time.Parse(saleTimeLayout, *clock); err == nil {
			d = time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
		}
	}
	return d.UTC().Format(time.RFC3339)
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func textOr(v *string, def string) string {
	if v == nil || *v == "" {
		return def
	}
	return *v
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func int64Or(v *int64, def int64) int64 {
	if v == nil {
		return def
	}
	return *v
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// numericTextOr parses a numeric-string field. Absent or unparsable values
// yield the default.
func numericTextOr(v *string, def int) int {
	if v == nil {
		return def
	}
	n, err := strconv.Atoi(*v)
	if err != nil {
		return def
	}
	return n
}
