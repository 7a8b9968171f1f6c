package mqtt

import "errors"

// Failure classification for MQTT operations.
// Use errors.Is() to check for these errors in calling code.
//
// The distinction between ErrMissingBrokerURL (configuration, fixable only by
// an operator) and ErrConnectionFailed (transient network/broker fault)
// matters to callers: the former must never be presented as a retryable
// network problem.
var (
	// ErrMissingBrokerURL is returned when no broker URL is configured.
	ErrMissingBrokerURL = errors.New("mqtt: broker URL is not configured")

	// ErrMissingCredentials is returned when the broker username or password is empty.
	ErrMissingCredentials = errors.New("mqtt: missing broker credentials")

	// ErrConnectTimeout is returned when the broker does not accept the
	// connection within the connect timeout.
	ErrConnectTimeout = errors.New("mqtt: connect timed out")

	// ErrConnectionFailed is returned when the broker or transport reports a
	// connection error.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrAckTimeout is returned when the broker accepts the connection but
	// never acknowledges a publish or subscribe within the ack guard.
	ErrAckTimeout = errors.New("mqtt: broker did not acknowledge in time")

	// ErrPublishFailed is returned when the broker explicitly rejects a publish.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed is returned when the broker explicitly rejects a subscribe.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrClosedPrematurely is returned when the connection drops before the
	// outcome of the in-flight operation is known.
	ErrClosedPrematurely = errors.New("mqtt: connection closed before operation completed")

	// ErrInvalidTopic is returned when an empty topic is provided.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")

	// ErrInvalidQoS is returned when an invalid QoS level is specified.
	// Valid QoS levels are 0, 1, or 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")
)
