package wsfanout

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"kidscanvas/internal/access"
	"kidscanvas/internal/domain"
	"kidscanvas/internal/store"
)

func newTestHandler(st *store.Store) (*Handler, *access.Signer) {
	signer := access.NewSigner("test-secret")
	return NewHandler(st, nil, signer, nil), signer
}

func TestLookupMembership_ReturnsNilWithoutErrorWhenAbsent(t *testing.T) {
	st := store.New("")
	roomID := uuid.New()
	st.WithTx(func(tx *store.Tx) error {
		tx.SaveRoom(domain.Room{ID: roomID, Name: "room-a", CreatedAt: time.Now()})
		return nil
	})

	h, _ := newTestHandler(st)
	member, err := h.lookupMembership(roomID, uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if member != nil {
		t.Fatalf("expected nil membership, got %+v", member)
	}
}

func TestLookupMembership_ReturnsMembershipWhenPresent(t *testing.T) {
	st := store.New("")
	roomID := uuid.New()
	userID := uuid.New()
	st.WithTx(func(tx *store.Tx) error {
		tx.SaveRoom(domain.Room{ID: roomID, Name: "room-a", CreatedAt: time.Now()})
		tx.SaveRoomMember(domain.RoomMember{RoomID: roomID, UserID: userID, Role: domain.RoleParticipant, JoinedAt: time.Now()})
		return nil
	})

	h, _ := newTestHandler(st)
	member, err := h.lookupMembership(roomID, userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if member == nil || member.UserID != userID {
		t.Fatalf("expected membership for %s, got %+v", userID, member)
	}
}

func TestLookupMembership_ReturnsErrorWhenRoomMissing(t *testing.T) {
	st := store.New("")
	h, _ := newTestHandler(st)

	if _, err := h.lookupMembership(uuid.New(), uuid.New()); err == nil {
		t.Fatalf("expected an error for a nonexistent room")
	}
}
