// Package diagnostic implements the operator-facing broker connectivity test.
//
// A diagnostic session holds at most one live MQTT connection, opened on
// demand by TestConnection and torn down by Disconnect. Every lifecycle event
// is mirrored into an in-memory activity log (bounded, newest first) that the
// dashboard polls alongside the connection state.
//
// The session is deliberately forgiving: pings while disconnected are logged
// no-ops, repeat disconnects are absorbed, and callbacks from an abandoned
// connection attempt are discarded rather than corrupting the current state.
package diagnostic
