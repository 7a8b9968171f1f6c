package command

import (
	"context"
	"fmt"

	"github.com/idea-vending/vendsync/internal/credentials"
	"github.com/idea-vending/vendsync/internal/infrastructure/config"
	"github.com/idea-vending/vendsync/internal/infrastructure/logging"
	"github.com/idea-vending/vendsync/internal/infrastructure/mqtt"
)

// Publisher dispatches operation envelopes to machine controllers over
// single-use MQTT sessions.
//
// Every publish method follows the same lifecycle: credential pre-flight,
// payload validation, dial, publish with broker acknowledgement, disconnect.
// The session is torn down on every exit path, success or failure.
//
// Thread Safety:
//   - All methods are safe for concurrent use. Concurrent calls never share
//     a connection.
type Publisher struct {
	cfg    config.MQTTConfig
	dial   mqtt.Dialer
	logger *logging.Logger
}

// NewPublisher creates a command publisher using the production MQTT dialer.
//
// Parameters:
//   - cfg: MQTT broker configuration (URL, QoS, timeouts, product topic template)
//   - logger: Structured logger for dispatch outcomes
func NewPublisher(cfg config.MQTTConfig, logger *logging.Logger) *Publisher {
	return &Publisher{
		cfg:    cfg,
		dial:   mqtt.DialConn,
		logger: logger.With("component", "command"),
	}
}

// PublishSlotOperation publishes a slot create/update/delete to the machine's
// slot topic (machines/{machineId}/slots/{slotId}).
//
// The operation is validated and credentials are checked before any socket is
// opened. On success the broker has acknowledged receipt at the configured
// QoS level; delivery to the machine itself is not confirmed.
func (p *Publisher) PublishSlotOperation(ctx context.Context, creds credentials.Credentials, action Action, machineID, slotID int64, data SlotData) error {
	if creds.Missing() {
		return mqtt.ErrMissingCredentials
	}
	if err := ValidateSlotOperation(action, machineID, slotID, data); err != nil {
		return err
	}

	payload, err := EncodeSlotOperation(action, slotID, data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	topic := mqtt.Topics{}.SlotOperation(machineID, slotID)
	return p.publish(ctx, creds, "slot", string(action), topic, payload)
}

// PublishProductOperation publishes a product create/update/delete to the
// configured product topic (template with {enterpriseId} and {productId}
// placeholders, part of the broker contract).
func (p *Publisher) PublishProductOperation(ctx context.Context, creds credentials.Credentials, action Action, data ProductData) error {
	if creds.Missing() {
		return mqtt.ErrMissingCredentials
	}
	if err := ValidateProductOperation(action, data); err != nil {
		return err
	}

	payload, err := EncodeProductOperation(action, data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	topic := mqtt.ExpandProductTopic(p.cfg.ProductTopicTemplate, data.EnterpriseID, data.ID)
	return p.publish(ctx, creds, "product", string(action), topic, payload)
}

// PublishReboot publishes a reboot command to the machine's reboot topic
// (machines/{machineId}/reboot). Force requests an immediate restart without
// waiting for in-progress vends.
func (p *Publisher) PublishReboot(ctx context.Context, creds credentials.Credentials, machineID int64, force bool) error {
	if creds.Missing() {
		return mqtt.ErrMissingCredentials
	}
	if machineID <= 0 {
		return fmt.Errorf("%w: machine id is required", ErrValidation)
	}

	payload, err := EncodeReboot(force)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	topic := mqtt.Topics{}.MachineReboot(machineID)
	return p.publish(ctx, creds, "reboot", "command", topic, payload)
}

// publish runs one connect → publish → ack → disconnect cycle.
//
// The context is consulted before dialing so callers abandoning the request
// (client disconnect, shutdown) skip the network attempt entirely; once the
// dial starts, the session's own timeouts bound every wait.
func (p *Publisher) publish(ctx context.Context, creds credentials.Credentials, opContext, action, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	clientID := creds.ClientID
	if clientID == "" {
		clientID = mqtt.FallbackClientID("admin", opContext)
	}

	conn, err := p.dial(mqtt.Options{
		BrokerURL:      p.cfg.URL,
		Username:       creds.Username,
		Password:       creds.Password,
		ClientID:       clientID,
		ConnectTimeout: p.cfg.GetConnectTimeout(),
		KeepAlive:      p.cfg.GetKeepAlive(),
	})
	if err != nil {
		p.logger.Error("Command dispatch failed to connect",
			"topic", topic,
			"action", action,
			"error", err,
		)
		return err
	}
	defer conn.Close()

	if err := conn.Publish(topic, p.cfg.GetQoS(), payload); err != nil {
		p.logger.Error("Command dispatch failed to publish",
			"topic", topic,
			"action", action,
			"error", err,
		)
		return err
	}

	p.logger.Info("Command dispatched",
		"topic", topic,
		"action", action,
		"qos", p.cfg.QoS,
	)
	return nil
}
