package turnprocessor

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"kidscanvas/internal/aiagent"
	"kidscanvas/internal/domain"
	"kidscanvas/internal/eventstore"
	"kidscanvas/internal/moderation"
	"kidscanvas/internal/store"
)

// stubGenerator returns a fixed response or error, set per test.
type stubGenerator struct {
	resp *aiagent.GenerateResponse
	err  error
	n    int
}

func (g *stubGenerator) Generate(ctx context.Context, roomID, objectID uuid.UUID, anchor domain.AnchorRing) (*aiagent.GenerateResponse, error) {
	g.n++
	if g.err != nil {
		return nil, g.err
	}
	return g.resp, nil
}

func seedWaitingTurn(t *testing.T, st *store.Store) (domain.Turn, domain.CanvasObject) {
	t.Helper()
	roomID := uuid.New()
	objectID := uuid.New()
	turnID := uuid.New()

	var (
		turn   domain.Turn
		object domain.CanvasObject
	)
	_, err := st.WithTx(func(tx *store.Tx) error {
		tx.SaveRoom(domain.Room{ID: roomID, Name: "room", TurnSeq: 1, CreatedAt: time.Now()})

		object = domain.CanvasObject{
			ID:         objectID,
			RoomID:     roomID,
			OwnerID:    uuid.New(),
			BBox:       domain.BBox{X: 0, Y: 0, Width: 10, Height: 10},
			AnchorRing: domain.AnchorRing{Inner: domain.BBox{Width: 10, Height: 10}, Outer: domain.BBox{Width: 14, Height: 14}},
			Status:     domain.ObjectStatusCommitted,
			CreatedAt:  time.Now(),
		}
		tx.SaveObject(object)

		turn = domain.Turn{
			ID:             turnID,
			RoomID:         roomID,
			Sequence:       1,
			Status:         domain.TurnStatusWaitingForAI,
			CurrentActor:   domain.TurnActorAI,
			SourceObjectID: objectID,
			CreatedAt:      time.Now(),
			UpdatedAt:      time.Now(),
		}
		tx.SaveTurn(turn)
		return nil
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	return turn, object
}

func eventFor(turn domain.Turn, object domain.CanvasObject) TurnEvent {
	return TurnEvent{TurnID: turn.ID, RoomID: turn.RoomID, ObjectID: object.ID, Sequence: turn.Sequence}
}

func getTurn(t *testing.T, st *store.Store, id uuid.UUID) domain.Turn {
	t.Helper()
	var turn domain.Turn
	_, err := st.WithTx(func(tx *store.Tx) error {
		var err error
		turn, err = tx.GetTurn(id)
		return err
	})
	if err != nil {
		t.Fatalf("unexpected error fetching turn: %v", err)
	}
	return turn
}

func TestProcessEvent_SuccessfulRoundTripCompletesTurn(t *testing.T) {
	st := store.New("")
	events := eventstore.NewMemStore()
	turn, object := seedWaitingTurn(t, st)

	cacheDir := "cache://patch-1"
	gen := &stubGenerator{resp: &aiagent.GenerateResponse{
		Patch:    map[string]any{"instructions": "draw a friendly cloud", "labels": []any{"cloud"}},
		CacheDir: &cacheDir,
	}}

	p := New(st, events, gen, moderation.NewDefaultEngine(nil), Config{}, nil)
	p.ProcessEvent(context.Background(), eventFor(turn, object))

	got := getTurn(t, st, turn.ID)
	if got.Status != domain.TurnStatusAICompleted {
		t.Fatalf("expected ai_completed, got %s", got.Status)
	}
	if got.CurrentActor != domain.TurnActorPlayer {
		t.Fatalf("expected current_actor=player, got %s", got.CurrentActor)
	}
	if got.SafetyStatus == nil || *got.SafetyStatus != domain.SafetyStatusPassed {
		t.Fatalf("expected safety_status=passed, got %+v", got.SafetyStatus)
	}
	if got.AIPatchURI == nil || *got.AIPatchURI != cacheDir {
		t.Fatalf("expected ai_patch_uri to be set to cache dir, got %+v", got.AIPatchURI)
	}
}

func TestProcessEvent_UnsafePatchBlocksTurn(t *testing.T) {
	st := store.New("")
	events := eventstore.NewMemStore()
	turn, object := seedWaitingTurn(t, st)

	gen := &stubGenerator{resp: &aiagent.GenerateResponse{
		Patch: map[string]any{"instructions": "add some blood splatter", "labels": []any{"blood"}},
	}}

	p := New(st, events, gen, moderation.NewDefaultEngine(nil), Config{}, nil)
	p.ProcessEvent(context.Background(), eventFor(turn, object))

	got := getTurn(t, st, turn.ID)
	if got.Status != domain.TurnStatusBlocked {
		t.Fatalf("expected blocked, got %s", got.Status)
	}
	if got.SafetyStatus == nil || *got.SafetyStatus != domain.SafetyStatusBlocked {
		t.Fatalf("expected safety_status=blocked, got %+v", got.SafetyStatus)
	}

	_, txErr := st.WithTx(func(tx *store.Tx) error {
		logs := tx.ListAuditLogs(&turn.RoomID)
		found := false
		for _, log := range logs {
			if log.EventType == "turn.ai.blocked" {
				found = true
				safety, ok := log.Payload["safety"].(map[string]any)
				if !ok {
					t.Fatalf("expected safety payload on blocked audit log")
				}
				reasons, ok := safety["reasons"].([]string)
				if !ok {
					t.Fatalf("expected reasons slice in safety payload: %+v", safety)
				}
				hasBlood := false
				for _, r := range reasons {
					if r == "blood" {
						hasBlood = true
					}
				}
				if !hasBlood {
					t.Fatalf("expected blood among reasons, got %v", reasons)
				}
			}
		}
		if !found {
			t.Fatalf("expected turn.ai.blocked audit log")
		}
		return nil
	})
	if txErr != nil {
		t.Fatalf("unexpected error: %v", txErr)
	}
}

func TestProcessEvent_GeneratorErrorMarksBlockedWithErrorStatus(t *testing.T) {
	st := store.New("")
	events := eventstore.NewMemStore()
	turn, object := seedWaitingTurn(t, st)

	gen := &stubGenerator{err: context.DeadlineExceeded}
	p := New(st, events, gen, moderation.NewDefaultEngine(nil), Config{}, nil)
	p.ProcessEvent(context.Background(), eventFor(turn, object))

	got := getTurn(t, st, turn.ID)
	if got.Status != domain.TurnStatusBlocked {
		t.Fatalf("expected blocked, got %s", got.Status)
	}
	if got.SafetyStatus == nil || *got.SafetyStatus != domain.SafetyStatusError {
		t.Fatalf("expected safety_status=error, got %+v", got.SafetyStatus)
	}
	if got.CurrentActor != domain.TurnActorAI {
		t.Fatalf("expected current_actor to remain ai on transport error, got %s", got.CurrentActor)
	}
}

// TestProcessEvent_IsIdempotent verifies the at-most-one-transition
// guarantee: processing the same event twice leaves the turn in the state
// the first call produced, and only one terminal audit log is written.
func TestProcessEvent_IsIdempotent(t *testing.T) {
	st := store.New("")
	events := eventstore.NewMemStore()
	turn, object := seedWaitingTurn(t, st)

	cacheDir := "cache://patch-1"
	gen := &stubGenerator{resp: &aiagent.GenerateResponse{
		Patch:    map[string]any{"instructions": "draw a friendly cloud"},
		CacheDir: &cacheDir,
	}}

	p := New(st, events, gen, moderation.NewDefaultEngine(nil), Config{}, nil)
	evt := eventFor(turn, object)

	p.ProcessEvent(context.Background(), evt)
	first := getTurn(t, st, turn.ID)

	p.ProcessEvent(context.Background(), evt)
	second := getTurn(t, st, turn.ID)

	if first.Status != second.Status || first.UpdatedAt != second.UpdatedAt {
		t.Fatalf("expected second call to be a no-op: first=%+v second=%+v", first, second)
	}
	if gen.n != 1 {
		t.Fatalf("expected generator to be called once, got %d (loadSnapshot should have skipped the second call)", gen.n)
	}

	_, txErr := st.WithTx(func(tx *store.Tx) error {
		logs := tx.ListAuditLogs(&turn.RoomID)
		completedCount := 0
		for _, log := range logs {
			if log.EventType == "turn.ai.completed" {
				completedCount++
			}
		}
		if completedCount != 1 {
			t.Fatalf("expected exactly one completed audit log, got %d", completedCount)
		}
		return nil
	})
	if txErr != nil {
		t.Fatalf("unexpected error: %v", txErr)
	}
}
