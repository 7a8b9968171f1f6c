// Package credentials resolves per-user MQTT broker identities.
//
// Every MQTT operation runs under the credentials of the authenticated
// dashboard user. A user without a usable broker identity (empty username or
// password) cannot perform any MQTT operation — the absence is detected
// before a socket is ever opened and reported as a missing-credentials
// failure, so the UI can disable the triggering actions outright.
package credentials

import (
	"strconv"

	"github.com/idea-vending/vendsync/internal/infrastructure/config"
)

// Credentials is one user's MQTT broker identity.
//
// Read-only to the sync core; owned by the authenticated session.
type Credentials struct {
	Username string
	Password string

	// ClientID is the broker client identifier hint. May be empty, in which
	// case sessions derive one via mqtt.FallbackClientID.
	ClientID string

	// UserID is the dashboard user id, 0 when unknown. Used to scope the
	// diagnostic ping topic.
	UserID int64
}

// Missing reports whether the credentials are absent or unusable.
// Username and password are both required; the client id is optional.
func (c Credentials) Missing() bool {
	return c.Username == "" || c.Password == ""
}

// DiagnosticIdentity returns the identity segment for the diagnostic ping
// topic: the user id when known, otherwise the client id, otherwise empty
// (the topic builder falls back to "admin").
func (c Credentials) DiagnosticIdentity() string {
	if c.UserID != 0 {
		return strconv.FormatInt(c.UserID, 10)
	}
	return c.ClientID
}

// Resolver supplies credentials for MQTT operations.
type Resolver interface {
	// Resolve returns the current credentials. Implementations never fail:
	// absent credentials are represented by a value whose Missing() is true,
	// which callers classify before any network attempt.
	Resolve() Credentials
}

// StaticResolver serves fixed credentials from configuration.
// Used as the fallback identity when a request carries no per-user identity.
type StaticResolver struct {
	creds Credentials
}

// NewStaticResolver builds a resolver from the configured static credentials.
func NewStaticResolver(cfg config.MQTTCredentialsConfig) *StaticResolver {
	return &StaticResolver{
		creds: Credentials{
			Username: cfg.Username,
			Password: cfg.Password,
			ClientID: cfg.ClientID,
			UserID:   cfg.UserID,
		},
	}
}

// Resolve implements Resolver.
func (r *StaticResolver) Resolve() Credentials {
	return r.creds
}
