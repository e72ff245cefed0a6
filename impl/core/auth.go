package core

import (
	"crypto/subtle"
	"errors"
)

const operatorName = "operator"

var ErrUnauthorized = errors.New("invalid api key")

// AuthenticateByToken checks a Bearer token against the configured API key
// and returns the operator name.
func (c *Core) AuthenticateByToken(token string) (string, error) {
	if c.authKey == "" || token == "" {
		return "", ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(c.authKey)) != 1 {
		return "", ErrUnauthorized
	}
	return operatorName, nil
}

// ValidateToken authenticates websocket clients.
func (c *Core) ValidateToken(token string) (string, error) {
	return c.AuthenticateByToken(token)
}
