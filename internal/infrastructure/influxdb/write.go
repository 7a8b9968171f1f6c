package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WritePaymentMetric records one payment event.
//
// Tags are low-cardinality routing dimensions (machine, enterprise, card
// type, outcome); the transaction amount and response code are fields. The
// write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - machineID: Machine that produced the payment
//   - enterpriseID: Owning enterprise
//   - cardType: Normalized card type ("debit", "credit", raw code, or empty)
//   - successful: Transaction outcome
//   - amount: Transaction amount
//   - responseCode: Gateway response code (-1 when unknown)
func (c *Client) WritePaymentMetric(machineID, enterpriseID int64, cardType string, successful bool, amount float64, responseCode int) {
	if !c.IsConnected() {
		return
	}

	if cardType == "" {
		cardType = "unknown"
	}

	point := write.NewPoint(
		"payments",
		map[string]string{
			"machine_id":    strconv.FormatInt(machineID, 10),
			"enterprise_id": strconv.FormatInt(enterpriseID, 10),
			"card_type":     cardType,
			"successful":    strconv.FormatBool(successful),
		},
		map[string]interface{}{
			"amount":        amount,
			"response_code": responseCode,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteStreamStatus records an event stream connection transition.
// Useful for alerting on a feed that silently went down.
func (c *Client) WriteStreamStatus(status string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"stream_status",
		map[string]string{
			"status": status,
		},
		map[string]interface{}{
			"value": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteCommandMetric records one command dispatch outcome.
//
// Parameters:
//   - context: Operation context ("slot", "product", "reboot")
//   - action: Envelope action tag
//   - success: Whether the broker acknowledged the publish
func (c *Client) WriteCommandMetric(context, action string, success bool) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"commands",
		map[string]string{
			"context": context,
			"action":  action,
			"success": strconv.FormatBool(success),
		},
		map[string]interface{}{
			"value": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
