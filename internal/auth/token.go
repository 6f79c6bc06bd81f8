// Package auth implements the Auth/Token Service (C9): password
// authentication, HTTP session issuance, and the short-lived bearer tokens
// WebSocket connections authenticate with.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken       = errors.New("auth: invalid token")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
)

// Role distinguishes a full desktop principal from a pair-code-scoped
// mobile guest.
type Role string

const (
	RoleDesktop      Role = "desktop"
	RolePairedMobile Role = "paired-mobile"
)

// DeviceType records which side of the relay a token was issued to.
type DeviceType string

const (
	DeviceDesktop DeviceType = "desktop"
	DeviceMobile  DeviceType = "mobile"
)

// Claims is the WS bearer token payload: principal id, role, device type,
// plus the registered issued-at/expiry fields. A mobile-inherited token
// additionally carries the channel it is scoped to, so a stolen or
// outlived token cannot be replayed against a different pairing.
type Claims struct {
	PrincipalID string     `json:"principalId"`
	Role        Role       `json:"role"`
	Device      DeviceType `json:"device"`
	ChannelID   string     `json:"channelId,omitempty"`
	jwt.RegisteredClaims
}

// Service issues and verifies WS bearer tokens with a single symmetric
// key, matching the teacher's HS256 + bcrypt user service.
type Service struct {
	secret   []byte
	tokenTTL time.Duration
}

func NewService(secret string, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 15 * time.Minute
	}
	return &Service{secret: []byte(secret), tokenTTL: tokenTTL}
}

// IssueDesktopToken mints a full-role bearer token for an authenticated
// desktop principal, for use as a WebSocket subprotocol credential.
func (s *Service) IssueDesktopToken(principalID string) (string, time.Time, error) {
	return s.issue(Claims{
		PrincipalID: principalID,
		Role:        RoleDesktop,
		Device:      DeviceDesktop,
	})
}

// IssueMobileToken mints a reduced-role token scoped to channelID: a
// mobile device presenting a valid pair code inherits the desktop's
// identity for routing purposes, but never its role, and the token is
// useless outside that one channel (see the role-scoping design note this
// token layout implements).
func (s *Service) IssueMobileToken(inheritedFromPrincipalID, channelID string) (string, time.Time, error) {
	return s.issue(Claims{
		PrincipalID: inheritedFromPrincipalID,
		Role:        RolePairedMobile,
		Device:      DeviceMobile,
		ChannelID:   channelID,
	})
}

func (s *Service) issue(claims Claims) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.tokenTTL)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		Subject:   claims.PrincipalID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a bearer token, returning its claims.
// Verification failure is the caller's cue to close the socket with a
// policy-violation code.
func (s *Service) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
