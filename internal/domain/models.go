package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is a room member's privilege level.
type Role string

const (
	RoleHost        Role = "host"
	RoleParticipant Role = "participant"
)

// Room is a shared canvas session. TurnSeq increases by exactly one per
// committed object in the room and is never decremented.
type Room struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	TurnSeq   int       `json:"turn_seq"`
	CreatedAt time.Time `json:"created_at"`
}

// RoomMember links a user to a room with a fixed role. Unique by (RoomID, UserID).
type RoomMember struct {
	RoomID   uuid.UUID `json:"room_id"`
	UserID   uuid.UUID `json:"user_id"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// Point is a single (x, y) sample on a stroke's path.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is one freehand path drawn by a room member. ObjectID, once set, is immutable.
type Stroke struct {
	ID       uuid.UUID  `json:"id"`
	RoomID   uuid.UUID  `json:"room_id"`
	AuthorID uuid.UUID  `json:"author_id"`
	Path     []Point    `json:"path"`
	Color    string     `json:"color"`
	Width    float64    `json:"width"`
	Ts       time.Time  `json:"ts"`
	ObjectID *uuid.UUID `json:"object_id,omitempty"`
}

// BBox is an axis-aligned bounding box.
type BBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// AnchorRing is the pair of nested boxes bounding where an AI patch may draw.
type AnchorRing struct {
	Inner BBox `json:"inner"`
	Outer BBox `json:"outer"`
}

// ObjectStatus is the lifecycle state of a CanvasObject. Only Committed objects
// exist in the store for this core; Draft is reserved for a future phase.
type ObjectStatus string

const (
	ObjectStatusDraft     ObjectStatus = "draft"
	ObjectStatusCommitted ObjectStatus = "committed"
)

// CanvasObject groups one or more strokes into an addressable, AI-extensible unit.
type CanvasObject struct {
	ID         uuid.UUID    `json:"id"`
	RoomID     uuid.UUID    `json:"room_id"`
	OwnerID    uuid.UUID    `json:"owner_id"`
	BBox       BBox         `json:"bbox"`
	AnchorRing AnchorRing   `json:"anchor_ring"`
	Status     ObjectStatus `json:"status"`
	Label      *string      `json:"label,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// TurnStatus is the lifecycle state of a Turn.
type TurnStatus string

const (
	TurnStatusWaitingForAI TurnStatus = "waiting_for_ai"
	TurnStatusAICompleted  TurnStatus = "ai_completed"
	TurnStatusBlocked      TurnStatus = "blocked"
)

// TurnActor identifies whose move it is.
type TurnActor string

const (
	TurnActorPlayer TurnActor = "player"
	TurnActorAI     TurnActor = "ai"
)

// SafetyStatus is the outcome of the moderation pass over a generated patch.
type SafetyStatus string

const (
	SafetyStatusPassed  SafetyStatus = "passed"
	SafetyStatusBlocked SafetyStatus = "blocked"
	SafetyStatusError   SafetyStatus = "error"
)

// Turn is one unit of AI-assisted continuation, spawned by an object commit.
// Unique by (RoomID, Sequence); Sequence equals Room.TurnSeq at creation time.
type Turn struct {
	ID             uuid.UUID     `json:"id"`
	RoomID         uuid.UUID     `json:"room_id"`
	Sequence       int           `json:"sequence"`
	Status         TurnStatus    `json:"status"`
	CurrentActor   TurnActor     `json:"current_actor"`
	SourceObjectID uuid.UUID     `json:"source_object_id"`
	AIPatchURI     *string       `json:"ai_patch_uri,omitempty"`
	SafetyStatus   *SafetyStatus `json:"safety_status,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// AuditLog is an append-only record of a domain event.
type AuditLog struct {
	ID        uuid.UUID       `json:"id"`
	RoomID    uuid.UUID       `json:"room_id"`
	UserID    *uuid.UUID      `json:"user_id,omitempty"`
	TurnID    *uuid.UUID      `json:"turn_id,omitempty"`
	EventType string          `json:"event_type"`
	Payload   map[string]any  `json:"payload"`
	Ts        time.Time       `json:"ts"`
}
