// Package utils provides the JWT envelope around session ids. The signed
// token is a convenience for browser clients holding one bearer string; the
// authorization truth stays in the server-side session record, which is
// re-read on every request. Revoking a user or rotating a token therefore
// invalidates outstanding JWTs immediately.
package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionToken is a signed HS256 JWT referencing a session record.
type SessionToken struct {
	Token string
	Exp   time.Time
}

// ErrBadSessionToken is returned when a presented JWT fails verification or
// carries no session id.
var ErrBadSessionToken = errors.New("invalid session token")

// NewSessionToken signs a JWT carrying the session id (sid), the username
// (sub) and the role snapshot. TTL bounds how long the client may keep the
// string; the session record itself has no TTL and dies on logout,
// revocation or rotation.
func NewSessionToken(secret, sessionID, username, role string, ttlMin int) (SessionToken, error) {
	exp := time.Now().UTC().Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sid":  sessionID,
		"sub":  username,
		"role": role,
		"exp":  exp.Unix(),
		"iat":  time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{Token: signed, Exp: exp}, nil
}

// ParseSessionToken verifies the signature and returns the embedded session
// id.
func ParseSessionToken(secret, raw string) (string, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrBadSessionToken
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return "", ErrBadSessionToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrBadSessionToken
	}
	sid, ok := claims["sid"].(string)
	if !ok || sid == "" {
		return "", ErrBadSessionToken
	}
	return sid, nil
}
