// Package turnprocessor implements the long-lived background worker that
// dequeues turn-dispatch events, calls the external AI generator, applies
// moderation, and transitions each turn to its terminal state.
package turnprocessor

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"kidscanvas/internal/aiagent"
	"kidscanvas/internal/domain"
	"kidscanvas/internal/eventstore"
	"kidscanvas/internal/moderation"
	"kidscanvas/internal/store"
)

// DefaultPollInterval is used when Config.PollInterval is zero.
const DefaultPollInterval = 500 * time.Millisecond

const (
	turnQueueKey       = "turn:events"
	generalEventStream = "ws:events"
)

// Generator is the abstract AI-generation port. *aiagent.Client satisfies
// it against the real service; tests and local development substitute a
// mock (see mockgenerator.go).
type Generator interface {
	Generate(ctx context.Context, roomID, objectID uuid.UUID, anchor domain.AnchorRing) (*aiagent.GenerateResponse, error)
}

// TurnEvent is the decoded turn:events queue payload.
type TurnEvent struct {
	TurnID   uuid.UUID `json:"turn_id"`
	RoomID   uuid.UUID `json:"room_id"`
	ObjectID uuid.UUID `json:"object_id"`
	Sequence int       `json:"sequence"`
}

// Config configures a Processor.
type Config struct {
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Processor is the turn-processing background worker.
type Processor struct {
	store      *store.Store
	events     eventstore.Store
	generator  Generator
	moderation moderation.Port
	logger     *slog.Logger

	pollInterval time.Duration
	closeFn      func()

	stopping atomic.Bool
	wg       sync.WaitGroup
}

// New builds a Processor. closeFn, if non-nil, is invoked on Stop to
// release the generator's resources (set when the processor owns the
// client, per spec §4.3 "closes the client if it owns it").
func New(st *store.Store, events eventstore.Store, generator Generator, mod moderation.Port, cfg Config, closeFn func()) *Processor {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		store:        st,
		events:       events,
		generator:    generator,
		moderation:   mod,
		logger:       logger,
		pollInterval: pollInterval,
		closeFn:      closeFn,
	}
}

// Start begins the poll loop in a new goroutine. Non-blocking.
func (p *Processor) Start(ctx context.Context) {
	p.wg.Add(1)
	go p.run(ctx)
}

// Stop signals the poll loop to exit after finishing its current item, waits
// for it to return, then releases the generator if this processor owns it.
func (p *Processor) Stop() {
	p.stopping.Store(true)
	p.wg.Wait()
	if p.closeFn != nil {
		p.closeFn()
	}
}

func (p *Processor) run(ctx context.Context) {
	defer p.wg.Done()

	for !p.stopping.Load() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		raw, ok, err := p.events.Pop(ctx, turnQueueKey)
		if err != nil {
			p.logger.Error("turn queue pop failed", "error", err)
			sleep(ctx, p.pollInterval)
			continue
		}
		if !ok {
			sleep(ctx, p.pollInterval)
			continue
		}

		var event TurnEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			p.logger.Warn("malformed turn event payload, skipping", "payload", string(raw), "error", err)
			continue
		}

		p.ProcessEvent(ctx, event)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// ProcessEvent runs the full generate → moderate → transition pipeline for
// one dequeued event. Exported so tests can assert the at-most-one-
// transition guarantee by calling it twice without going through the queue.
func (p *Processor) ProcessEvent(ctx context.Context, event TurnEvent) {
	object, turn, ok := p.loadSnapshot(event)
	if !ok {
		return
	}

	resp, err := p.generator.Generate(ctx, event.RoomID, event.ObjectID, object.AnchorRing)
	if err != nil {
		p.markBlocked(event, err.Error(), nil)
		return
	}

	summary := p.runSafetyChecks(object, resp.Patch)
	if !summary.Passed {
		p.markBlocked(event, "policy_violation", &summary)
		return
	}

	p.markCompleted(event, turn, resp, summary)
}

// loadSnapshot reads the turn and object in a read-only transaction. A
// missing turn/object, or a turn that has already left waiting_for_ai, is
// the idempotency guard: the event is skipped silently.
func (p *Processor) loadSnapshot(event TurnEvent) (domain.CanvasObject, domain.Turn, bool) {
	var (
		object domain.CanvasObject
		turn   domain.Turn
		ok     bool
	)
	p.store.WithTx(func(tx *store.Tx) error {
		t, err := tx.GetTurn(event.TurnID)
		if err != nil {
			return nil
		}
		if t.Status != domain.TurnStatusWaitingForAI {
			return nil
		}
		o, err := tx.GetObject(event.ObjectID)
		if err != nil {
			return nil
		}
		turn, object, ok = t, o, true
		return nil
	})
	return object, turn, ok
}

func (p *Processor) runSafetyChecks(object domain.CanvasObject, patch map[string]any) moderation.SafetySummary {
	var results []moderation.SafetyResult

	if instructions, isString := patch["instructions"].(string); isString && instructions != "" {
		results = append(results, p.moderation.EvaluateText(instructions))
	}

	var labels []string
	if rawLabels, isSlice := patch["labels"].([]any); isSlice {
		for _, l := range rawLabels {
			if s, isString := l.(string); isString {
				labels = append(labels, s)
			}
		}
	}
	if object.Label != nil {
		labels = append(labels, *object.Label)
	}
	if len(labels) > 0 {
		results = append(results, p.moderation.EvaluateLabels(labels))
	}

	return moderation.NewSafetySummary(results...)
}

func (p *Processor) markCompleted(event TurnEvent, turn domain.Turn, resp *aiagent.GenerateResponse, summary moderation.SafetySummary) {
	now := time.Now().UTC()
	safetyStatus := domain.SafetyStatusPassed

	changed, err := p.store.WithTx(func(tx *store.Tx) error {
		current, err := tx.GetTurn(event.TurnID)
		if err != nil {
			return err
		}
		if current.Status != domain.TurnStatusWaitingForAI {
			return nil // already transitioned; no-op (at-most-one-transition)
		}

		current.Status = domain.TurnStatusAICompleted
		current.CurrentActor = domain.TurnActorPlayer
		current.SafetyStatus = &safetyStatus
		current.UpdatedAt = now
		if resp.CacheDir != nil && *resp.CacheDir != "" {
			current.AIPatchURI = resp.CacheDir
		}
		tx.UpdateTurn(current)

		tx.AppendAuditLog(domain.AuditLog{
			ID:        uuid.New(),
			RoomID:    current.RoomID,
			TurnID:    &current.ID,
			EventType: "turn.ai.completed",
			Payload: map[string]any{
				"sequence":  current.Sequence,
				"patch":     resp.Patch,
				"cache_dir": resp.CacheDir,
				"status":    string(current.Status),
				"safety":    summary.ToPayload(),
			},
			Ts: now,
		})
		return nil
	})
	if err != nil {
		p.logger.Error("mark-completed transaction failed", "turn_id", event.TurnID, "error", err)
		return
	}
	if !changed {
		return
	}

	p.emitTurnEvent(event, map[string]any{
		"turnId":       event.TurnID.String(),
		"sequence":     event.Sequence,
		"status":       string(domain.TurnStatusAICompleted),
		"safetyStatus": string(domain.SafetyStatusPassed),
		"safety":       summary.ToPayload(),
		"patch":        resp.Patch,
	})
}

func (p *Processor) markBlocked(event TurnEvent, reason string, summary *moderation.SafetySummary) {
	now := time.Now().UTC()

	var safetyStatus domain.SafetyStatus
	var actor domain.TurnActor
	if summary == nil {
		safetyStatus = domain.SafetyStatusError
		actor = domain.TurnActorAI
	} else {
		safetyStatus = domain.SafetyStatusBlocked
		actor = domain.TurnActorPlayer
	}

	changed, err := p.store.WithTx(func(tx *store.Tx) error {
		current, err := tx.GetTurn(event.TurnID)
		if err != nil {
			return nil // already gone; nothing to do
		}
		if current.Status != domain.TurnStatusWaitingForAI {
			return nil
		}

		current.Status = domain.TurnStatusBlocked
		current.CurrentActor = actor
		current.SafetyStatus = &safetyStatus
		current.UpdatedAt = now
		tx.UpdateTurn(current)

		var safetyPayload any
		if summary != nil {
			safetyPayload = summary.ToPayload()
		}

		tx.AppendAuditLog(domain.AuditLog{
			ID:        uuid.New(),
			RoomID:    current.RoomID,
			TurnID:    &current.ID,
			EventType: "turn.ai.blocked",
			Payload: map[string]any{
				"sequence": current.Sequence,
				"reason":   reason,
				"safety":   safetyPayload,
			},
			Ts: now,
		})
		return nil
	})
	if err != nil {
		p.logger.Error("mark-blocked transaction failed", "turn_id", event.TurnID, "error", err)
		return
	}
	if !changed {
		return
	}

	payload := map[string]any{
		"turnId":       event.TurnID.String(),
		"sequence":     event.Sequence,
		"status":       string(domain.TurnStatusBlocked),
		"safetyStatus": string(safetyStatus),
		"reason":       reason,
	}
	if summary != nil {
		payload["safety"] = summary.ToPayload()
	}
	p.emitTurnEvent(event, payload)
}

// emitTurnEvent publishes the turn transition to the general topic stream
// for WebSocket fan-out.
func (p *Processor) emitTurnEvent(event TurnEvent, payload map[string]any) {
	envelope := map[string]any{
		"topic":     "turn",
		"roomId":    event.RoomID.String(),
		"timestamp": time.Now().UTC(),
		"payload":   payload,
	}
	if _, err := p.events.Append(context.Background(), generalEventStream, envelope); err != nil {
		p.logger.Error("emit turn timeline event failed", "turn_id", event.TurnID, "error", err)
	}
}
