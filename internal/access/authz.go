package access

import (
	"crypto/subtle"
	"errors"

	"kidscanvas/internal/domain"
)

// ErrRoomAccessDenied is returned when a player subject with no room
// membership tries to join a room's event stream.
var ErrRoomAccessDenied = errors.New("room access denied")

// ErrUnauthorized is returned when neither the service key nor the bearer
// subject's role satisfies AuthorizeServiceOrRole.
var ErrUnauthorized = errors.New("unauthorized")

// AuthorizeRoomAccess mirrors the websocket gateway's membership check: a
// player must be a member of the room; moderators and parents may observe
// any room without a membership row.
func AuthorizeRoomAccess(subject Subject, membership *domain.RoomMember) error {
	if membership != nil {
		return nil
	}
	if subject.Role == RolePlayer {
		return ErrRoomAccessDenied
	}
	return nil
}

// AuthorizeServiceKey does a constant-time comparison of a presented
// internal-service key against the configured one, used to gate the
// event-relay endpoint the realtime gateway polls.
func AuthorizeServiceKey(presented, configured string) bool {
	if configured == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(configured)) == 1
}

// RequireRoles reports whether subject's role is among allowed.
func RequireRoles(subject Subject, allowed ...Role) bool {
	for _, r := range allowed {
		if subject.Role == r {
			return true
		}
	}
	return false
}

// AuthorizeServiceOrRole gates the internal event-relay route: it accepts
// either a presented service key matching configured, or a non-nil subject
// (already decoded from the request's bearer token) holding one of allowed.
// subject is nil when no token was presented or it failed to decode.
func AuthorizeServiceOrRole(presented, configured string, subject *Subject, allowed ...Role) error {
	if AuthorizeServiceKey(presented, configured) {
		return nil
	}
	if subject != nil && RequireRoles(*subject, allowed...) {
		return nil
	}
	return ErrUnauthorized
}
