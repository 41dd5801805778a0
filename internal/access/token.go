// Package access implements the core's bearer-token format and the
// role-based authorization checks layered on top of it. The token is
// deliberately not a JWT: it is the two-part base64url-payload/hex-HMAC
// format the core has always used, so it is implemented directly on
// crypto/hmac rather than forced through a JWT library.
package access

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is the account-level role carried in a token's "role" claim. It is
// distinct from domain.Role, which records a user's membership role within
// one room.
type Role string

const (
	RolePlayer    Role = "player"
	RoleModerator Role = "moderator"
	RoleParent    Role = "parent"
)

var (
	// ErrInvalidToken covers malformed tokens: wrong shape, bad base64,
	// unparsable JSON, or a missing/invalid role or subject.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidSignature is returned when the HMAC tag does not match.
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrTokenExpired is returned once the token's exp claim has passed.
	ErrTokenExpired = errors.New("token expired")
)

// Subject is the authenticated identity decoded from a token.
type Subject struct {
	UserID uuid.UUID
	Role   Role
}

type claims struct {
	Sub string `json:"sub"`
	Rol string `json:"role"`
	Exp int64  `json:"exp"`
}

// Signer issues and verifies tokens under one HMAC secret.
type Signer struct {
	secret []byte
}

// NewSigner builds a Signer bound to secret. An empty secret is a
// configuration error the caller must reject before serving requests.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Encode issues a token for (userID, role) that expires after ttl.
func (s *Signer) Encode(userID uuid.UUID, role Role, ttl time.Duration) (string, error) {
	payload := claims{
		Sub: userID.String(),
		Rol: string(role),
		Exp: time.Now().UTC().Add(ttl).Unix(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal token claims: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(body)
	return encoded + "." + s.sign(encoded), nil
}

// Decode verifies the token's signature and expiry and returns its subject.
func (s *Signer) Decode(token string) (Subject, error) {
	encoded, signature, ok := strings.Cut(token, ".")
	if !ok {
		return Subject{}, ErrInvalidToken
	}

	expected := s.sign(encoded)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return Subject{}, ErrInvalidSignature
	}

	body, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Subject{}, ErrInvalidToken
	}
	var c claims
	if err := json.Unmarshal(body, &c); err != nil {
		return Subject{}, ErrInvalidToken
	}

	if time.Now().UTC().Unix() > c.Exp {
		return Subject{}, ErrTokenExpired
	}

	userID, err := uuid.Parse(c.Sub)
	if err != nil {
		return Subject{}, ErrInvalidToken
	}
	role := Role(c.Rol)
	switch role {
	case RolePlayer, RoleModerator, RoleParent:
	default:
		return Subject{}, ErrInvalidToken
	}

	return Subject{UserID: userID, Role: role}, nil
}

func (s *Signer) sign(encoded string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(encoded))
	return hex.EncodeToString(mac.Sum(nil))
}
