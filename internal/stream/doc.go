// Package stream consumes the live payment and sale event feed.
//
// A subscriber owns one long-lived MQTT session, subscribes to the payment
// and sale wildcard topics (or a caller-supplied scoped set), decodes the two
// inbound event shapes into normalized payment records, and hands each record
// to a sink. Malformed messages are logged and dropped; the subscription must
// survive any amount of garbage on the wire.
//
// There is no automatic reconnection. A dropped connection reports
// disconnected through the status callback and stays down until the owner
// starts a fresh subscriber.
package stream
