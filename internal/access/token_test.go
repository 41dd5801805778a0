package access

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"kidscanvas/internal/domain"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	signer := NewSigner("test-secret")
	userID := uuid.New()

	token, err := signer.Encode(userID, RolePlayer, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	subject, err := signer.Decode(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject.UserID != userID || subject.Role != RolePlayer {
		t.Fatalf("unexpected subject: %+v", subject)
	}
}

func TestDecode_RejectsTamperedSignature(t *testing.T) {
	signer := NewSigner("test-secret")
	token, _ := signer.Encode(uuid.New(), RolePlayer, time.Hour)

	replacement := "0"
	if token[len(token)-1] == '0' {
		replacement = "1"
	}
	tampered := token[:len(token)-1] + replacement
	if _, err := signer.Decode(tampered); err != ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestDecode_RejectsWrongSecret(t *testing.T) {
	issuer := NewSigner("secret-a")
	verifier := NewSigner("secret-b")

	token, _ := issuer.Encode(uuid.New(), RoleModerator, time.Hour)
	if _, err := verifier.Decode(token); err != ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestDecode_RejectsExpiredToken(t *testing.T) {
	signer := NewSigner("test-secret")
	token, _ := signer.Encode(uuid.New(), RoleParent, -time.Minute)

	if _, err := signer.Decode(token); err != ErrTokenExpired {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestDecode_RejectsMalformedShape(t *testing.T) {
	signer := NewSigner("test-secret")

	if _, err := signer.Decode("not-a-real-token"); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestAuthorizeRoomAccess_PlayerRequiresMembership(t *testing.T) {
	player := Subject{UserID: uuid.New(), Role: RolePlayer}

	if err := AuthorizeRoomAccess(player, nil); err != ErrRoomAccessDenied {
		t.Fatalf("expected ErrRoomAccessDenied, got %v", err)
	}

	member := &domain.RoomMember{}
	if err := AuthorizeRoomAccess(player, member); err != nil {
		t.Fatalf("unexpected error with membership present: %v", err)
	}
}

func TestAuthorizeRoomAccess_ModeratorBypassesMembership(t *testing.T) {
	moderator := Subject{UserID: uuid.New(), Role: RoleModerator}

	if err := AuthorizeRoomAccess(moderator, nil); err != nil {
		t.Fatalf("expected moderator to observe without membership, got %v", err)
	}
}

func TestAuthorizeServiceKey_ConstantTimeMatch(t *testing.T) {
	if !AuthorizeServiceKey("secret-key", "secret-key") {
		t.Fatalf("expected matching keys to authorize")
	}
	if AuthorizeServiceKey("wrong", "secret-key") {
		t.Fatalf("expected mismatched keys to fail")
	}
	if AuthorizeServiceKey("anything", "") {
		t.Fatalf("expected empty configured key to always fail")
	}
}
