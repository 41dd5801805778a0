// Package wsfanout serves the room event stream over WebSocket: a cursor
// replay of recent history followed by a live tail of the global timeline,
// filtered to one room.
package wsfanout

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"kidscanvas/internal/access"
	"kidscanvas/internal/domain"
	"kidscanvas/internal/eventstore"
	"kidscanvas/internal/store"
)

const (
	replayLimit = 50
	tailDelay   = 500 * time.Millisecond
)

// Handler serves GET /ws/rooms/:room_id.
type Handler struct {
	store  *store.Store
	events eventstore.Store
	signer *access.Signer
	logger *slog.Logger
}

// NewHandler wires the room-stream handler to its dependencies.
func NewHandler(st *store.Store, events eventstore.Store, signer *access.Signer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{store: st, events: events, signer: signer, logger: logger}
}

// Upgrade is mounted ahead of Serve to reject non-WebSocket requests before
// the connection is accepted, the standard gofiber/contrib/websocket dance.
func (h *Handler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Serve authenticates the caller, checks room membership, replays recent
// timeline history from the client's cursor, then tails new events. It
// returns (by closing the connection) once the room or subject is invalid;
// a disconnect or write error simply ends the goroutine.
func (h *Handler) Serve() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		roomID, err := uuid.Parse(conn.Params("room_id"))
		if err != nil {
			conn.Close()
			return
		}

		subject, ok := h.authenticate(conn)
		if !ok {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid token"))
			conn.Close()
			return
		}

		ctx := context.Background()
		membership, membershipErr := h.lookupMembership(roomID, subject.UserID)
		if membershipErr != nil {
			conn.Close()
			return
		}
		if err := access.AuthorizeRoomAccess(subject, membership); err != nil {
			conn.Close()
			return
		}

		cursor := conn.Query("cursor")

		backlog, err := h.events.ListTimeline(ctx, cursor, replayLimit)
		if err != nil {
			h.logger.Error("timeline replay failed", "room_id", roomID, "error", err)
			conn.Close()
			return
		}
		for _, evt := range backlog {
			cursor = evt.Cursor
			if evt.RoomID != roomID.String() {
				continue
			}
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		}

		for {
			evt, err := h.events.NextTimelineEvent(ctx, cursor)
			if err != nil {
				h.logger.Error("timeline tail failed", "room_id", roomID, "error", err)
				return
			}
			if evt == nil {
				time.Sleep(tailDelay)
				continue
			}
			cursor = evt.Cursor
			if evt.RoomID != roomID.String() {
				continue
			}
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		}
	})
}

func (h *Handler) authenticate(conn *websocket.Conn) (access.Subject, bool) {
	token := conn.Query("token")
	if token == "" {
		return access.Subject{}, false
	}
	subject, err := h.signer.Decode(token)
	if err != nil {
		return access.Subject{}, false
	}
	return subject, true
}

func (h *Handler) lookupMembership(roomID, userID uuid.UUID) (*domain.RoomMember, error) {
	var member *domain.RoomMember
	_, err := h.store.WithTx(func(tx *store.Tx) error {
		if _, err := tx.GetRoom(roomID); err != nil {
			return err
		}
		m, err := tx.GetRoomMember(roomID, userID)
		if err != nil {
			return nil // no membership: not an error, just absent
		}
		member = &m
		return nil
	})
	return member, err
}
