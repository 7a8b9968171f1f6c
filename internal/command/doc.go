// Package command publishes operation envelopes to vending machine controllers.
//
// Each publish call is a complete connect → publish → await broker ack →
// disconnect cycle over a dedicated MQTT session. Connections are never
// reused across calls, even for rapid sequential operations on the same
// entity: isolation is achieved by construction, not synchronization.
//
// Validation runs before any network attempt. A missing mandatory field or
// absent credentials rejects the call with a distinct, user-legible error and
// zero sockets opened.
//
// Ordering: within one call the connect → publish → ack sequence is strict;
// across calls there is none. Callers that need ordered delivery of two
// operations must await the first before issuing the second.
package command
