// Package objectcommit implements the pipeline that groups strokes into a
// committed CanvasObject, spawns its Turn, and fans the result out to the
// event store in one store transaction.
package objectcommit

import (
	"context"
	"fmt"
	"math"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"kidscanvas/internal/domain"
	"kidscanvas/internal/eventstore"
	"kidscanvas/internal/moderation"
	"kidscanvas/internal/store"
)

const (
	objectEventStream = "ws:object-events"
	generalEventStream = "ws:events"
	turnQueueKey       = "turn:events"
	maxLabelLength     = 128
)

// Service runs the object-commit pipeline described in spec §4.2.
type Service struct {
	store      *store.Store
	events     eventstore.Store
	moderation moderation.Port
}

// NewService wires the pipeline to its dependencies.
func NewService(st *store.Store, events eventstore.Store, mod moderation.Port) *Service {
	return &Service{store: st, events: events, moderation: mod}
}

// CommitObject validates the stroke grouping, computes its bounding box and
// anchor ring, moderates the label if present, and atomically writes the
// object, its turn, audit logs, and dispatch events.
func (s *Service) CommitObject(ctx context.Context, roomID, ownerID uuid.UUID, strokeIDs []uuid.UUID, label *string) (*domain.CanvasObject, *domain.Turn, *domain.Room, error) {
	if err := validateInput(strokeIDs, label); err != nil {
		return nil, nil, nil, err
	}

	var (
		object domain.CanvasObject
		turn   domain.Turn
		room   domain.Room
	)

	_, err := s.store.WithTx(func(tx *store.Tx) error {
		var err error
		room, err = tx.GetRoom(roomID)
		if err != nil {
			return err
		}

		strokes, err := tx.GetStrokes(roomID, strokeIDs)
		if err != nil {
			return err
		}

		var conflicting []uuid.UUID
		for _, st := range strokes {
			if st.ObjectID != nil {
				conflicting = append(conflicting, st.ID)
			}
		}
		if len(conflicting) > 0 {
			return &domain.ConflictError{StrokeIDs: conflicting}
		}

		bbox, err := computeBBox(strokes)
		if err != nil {
			return err
		}
		anchorRing := computeAnchorRing(bbox)

		if label != nil {
			if rejected := s.moderateLabel(tx, roomID, *label); rejected != nil {
				return rejected
			}
		}

		now := time.Now().UTC()
		object = domain.CanvasObject{
			ID:         uuid.New(),
			RoomID:     roomID,
			OwnerID:    ownerID,
			BBox:       bbox,
			AnchorRing: anchorRing,
			Status:     domain.ObjectStatusCommitted,
			Label:      label,
			CreatedAt:  now,
		}
		tx.SaveObject(object)

		for _, st := range strokes {
			tx.UpdateStroke(st, object.ID)
		}

		tx.AppendAuditLog(domain.AuditLog{
			ID:        uuid.New(),
			RoomID:    roomID,
			UserID:    &ownerID,
			EventType: "object.committed",
			Payload: map[string]any{
				"object_id":   object.ID.String(),
				"stroke_ids":  stringIDs(strokeIDs),
				"bbox":        bbox,
				"anchor_ring": anchorRing,
			},
			Ts: now,
		})

		room.TurnSeq++
		tx.SaveRoom(room)

		turn = domain.Turn{
			ID:             uuid.New(),
			RoomID:         roomID,
			Sequence:       room.TurnSeq,
			Status:         domain.TurnStatusWaitingForAI,
			CurrentActor:   domain.TurnActorAI,
			SourceObjectID: object.ID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		tx.SaveTurn(turn)

		tx.AppendAuditLog(domain.AuditLog{
			ID:        uuid.New(),
			RoomID:    roomID,
			UserID:    &ownerID,
			TurnID:    &turn.ID,
			EventType: "turn.created",
			Payload: map[string]any{
				"turn_id":          turn.ID.String(),
				"sequence":         turn.Sequence,
				"source_object_id": object.ID.String(),
			},
			Ts: now,
		})

		if err := s.emitCommitEvents(ctx, room, object, turn); err != nil {
			return fmt.Errorf("emit commit events: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, nil, err
	}

	return &object, &turn, &room, nil
}

// moderateLabel evaluates label against tx's already-open transaction. On
// rejection it buffers the object.blocked audit log via
// AppendAuditLogAlways, so it survives the *domain.ValidationError this
// returns aborting the rest of CommitObject's writes, then returns that
// error for the caller to propagate.
func (s *Service) moderateLabel(tx *store.Tx, roomID uuid.UUID, label string) error {
	result := s.moderation.EvaluateText(label)
	if result.Passed {
		return nil
	}

	tx.AppendAuditLogAlways(domain.AuditLog{
		ID:        uuid.New(),
		RoomID:    roomID,
		EventType: "object.blocked",
		Payload: map[string]any{
			"reasons": result.Reasons,
			"label":   label,
		},
		Ts: time.Now().UTC(),
	})

	return &domain.ValidationError{
		Message: "label rejected by moderation",
		Reasons: result.Reasons,
	}
}

func (s *Service) emitCommitEvents(ctx context.Context, room domain.Room, object domain.CanvasObject, turn domain.Turn) error {
	objectPayload := map[string]any{
		"topic":     "object",
		"roomId":    room.ID.String(),
		"timestamp": time.Now().UTC(),
		"payload": map[string]any{
			"id":         object.ID.String(),
			"roomId":     object.RoomID.String(),
			"ownerId":    object.OwnerID.String(),
			"label":      object.Label,
			"status":     object.Status,
			"bbox":       object.BBox,
			"anchorRing": object.AnchorRing,
			"createdAt":  object.CreatedAt,
			"turnId":     turn.ID.String(),
		},
	}

	if _, err := s.events.Append(ctx, objectEventStream, objectPayload); err != nil {
		return err
	}
	if _, err := s.events.Append(ctx, generalEventStream, objectPayload); err != nil {
		return err
	}

	turnEvent := map[string]any{
		"event":    "turn.waiting_for_ai",
		"turn_id":  turn.ID.String(),
		"room_id":  turn.RoomID.String(),
		"object_id": object.ID.String(),
		"sequence": turn.Sequence,
	}
	return s.events.Push(ctx, turnQueueKey, turnEvent)
}

func computeBBox(strokes []domain.Stroke) (domain.BBox, error) {
	var (
		minX, minY = math.Inf(1), math.Inf(1)
		maxX, maxY = math.Inf(-1), math.Inf(-1)
		sawPoint   bool
	)
	for _, st := range strokes {
		for _, p := range st.Path {
			sawPoint = true
			minX = math.Min(minX, p.X)
			maxX = math.Max(maxX, p.X)
			minY = math.Min(minY, p.Y)
			maxY = math.Max(maxY, p.Y)
		}
	}
	if !sawPoint {
		return domain.BBox{}, &domain.BadRequestError{Message: "strokes must contain at least one point"}
	}

	const minExtent = 1e-6
	return domain.BBox{
		X:      minX,
		Y:      minY,
		Width:  math.Max(maxX-minX, minExtent),
		Height: math.Max(maxY-minY, minExtent),
	}, nil
}

func computeAnchorRing(bbox domain.BBox) domain.AnchorRing {
	padding := 0.4 * math.Max(bbox.Width, bbox.Height)
	outer := domain.BBox{
		X:      bbox.X - padding,
		Y:      bbox.Y - padding,
		Width:  bbox.Width + 2*padding,
		Height: bbox.Height + 2*padding,
	}
	return domain.AnchorRing{Inner: bbox, Outer: outer}
}

func validateInput(strokeIDs []uuid.UUID, label *string) error {
	if len(strokeIDs) == 0 {
		return &domain.BadRequestError{Message: "at least one stroke must be provided"}
	}
	if label != nil {
		if err := validation.Validate(*label, validation.RuneLength(0, maxLabelLength)); err != nil {
			return &domain.BadRequestError{Message: fmt.Sprintf("label: %v", err)}
		}
	}
	return nil
}

func stringIDs(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
