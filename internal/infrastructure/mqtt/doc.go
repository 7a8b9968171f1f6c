// Package mqtt provides single-use MQTT sessions for vendsync.
//
// This package manages:
//   - Short-lived broker connections (one logical operation per connection)
//   - Message publishing with broker-acknowledged QoS 1 delivery
//   - Topic subscriptions with wildcard support
//   - Deterministic topic construction for the fleet topic scheme
//
// # Architecture
//
// Unlike a conventional always-on MQTT client, every session here is
// deliberately disposable: clean session, no automatic reconnection, and a
// hard teardown on every exit path. Commands to vending machines are
// fire-and-forget with broker acknowledgement; a silently reconnected session
// could resume a stale intent and deliver a command twice.
//
//	Admin dashboard → vendsync → MQTT broker → machine controllers
//
// The Conn interface and Dialer function type decouple session consumers
// (command publisher, diagnostic session, event stream subscriber) from the
// paho client, so they can be unit tested against fakes.
//
// # Usage
//
//	sess, err := mqtt.Dial(mqtt.Options{
//	    BrokerURL: cfg.MQTT.URL,
//	    Username:  creds.Username,
//	    Password:  creds.Password,
//	    ClientID:  mqtt.FallbackClientID("admin", "slot"),
//	})
//	if err != nil {
//	    return err
//	}
//	defer sess.Close()
//
//	topic := mqtt.Topics{}.SlotOperation(12, 34)
//	return sess.Publish(topic, 1, payload)
package mqtt
