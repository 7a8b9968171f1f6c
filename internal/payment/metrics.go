package payment

import "github.com/idea-vending/vendsync/internal/infrastructure/influxdb"

// MetricsSink mirrors payment records into InfluxDB.
// Satisfies the stream sink contract; writes are non-blocking.
type MetricsSink struct {
	client *influxdb.Client
}

// NewMetricsSink creates a sink over a connected InfluxDB client.
func NewMetricsSink(client *influxdb.Client) *MetricsSink {
	return &MetricsSink{client: client}
}

// Consume records one payment measurement point.
func (s *MetricsSink) Consume(p Payment) {
	s.client.WritePaymentMetric(p.MachineID, p.EnterpriseID, p.CardType, p.Successful, p.Amount, p.ResponseCode)
}
