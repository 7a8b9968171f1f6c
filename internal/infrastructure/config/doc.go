// Package config loads and validates vendsync configuration.
//
// Configuration is layered: hardcoded defaults, then a YAML file, then
// environment variable overrides (VENDSYNC_* plus the dashboard's
// NEXT_PUBLIC_MQTT_URL alias for the broker URL). Validation runs after
// all layers are applied so the effective configuration is what gets checked.
//
// The MQTT broker URL is deliberately not validated at load time: a missing
// URL must surface as a configuration error in the MQTT error taxonomy when
// an operation is attempted, not prevent the service from starting.
package config
