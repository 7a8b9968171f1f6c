// Package auth issues and validates the JWT access tokens the dashboard
// presents to the API.
//
// Tokens are signed HS256 with the configured secret and carry the user's
// MQTT broker identity as custom claims, so every request arrives with the
// credentials its MQTT operations must run under. User management lives in
// the dashboard backend; this service only consumes the tokens it mints.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/idea-vending/vendsync/internal/credentials"
)

// ErrTokenInvalid indicates a token failed signature, expiry, or claims validation.
var ErrTokenInvalid = errors.New("invalid token")

// CustomClaims extends JWT standard claims with the user's MQTT identity.
type CustomClaims struct {
	jwt.RegisteredClaims
	UserID       int64  `json:"user_id"`
	MQTTUser     string `json:"mqtt_user"`
	MQTTPassword string `json:"mqtt_password"`
	MQTTClientID string `json:"mqtt_client_id"`
}

// Credentials returns the MQTT broker identity carried by the claims.
// A token without broker claims yields credentials whose Missing() is true.
func (c *CustomClaims) Credentials() credentials.Credentials {
	return credentials.Credentials{
		Username: c.MQTTUser,
		Password: c.MQTTPassword,
		ClientID: c.MQTTClientID,
		UserID:   c.UserID,
	}
}

// GenerateAccessToken creates a signed JWT access token for a dashboard user.
// Access tokens are short-lived (configured TTL) and validated by signature
// only, so no database hit is needed per request.
func GenerateAccessToken(userID int64, creds credentials.Credentials, secret string, ttlMinutes int) (string, error) {
	if ttlMinutes <= 0 {
		ttlMinutes = 15 //nolint:mnd // default 15-minute access token TTL
	}

	now := time.Now()
	claims := CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ttlMinutes) * time.Minute)),
			ID:        uuid.NewString(),
		},
		UserID:       userID,
		MQTTUser:     creds.Username,
		MQTTPassword: creds.Password,
		MQTTClientID: creds.ClientID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return signed, nil
}

// ParseToken validates and parses a JWT access token, returning the custom claims.
// It checks the signature, expiry, and required fields.
func ParseToken(tokenString, secret string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	return claims, nil
}
