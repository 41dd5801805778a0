// Package eventstore implements the two logical streams the turn-processing
// core publishes to: FIFO queues for worker dispatch, and append-only topic
// streams that replicate into a globally ordered, cursor-addressable
// timeline for WebSocket fan-out.
package eventstore

import (
	"context"
	"encoding/json"
	"time"
)

// Event is one entry appended to a topic stream (and, transitively, to the
// global timeline).
type Event struct {
	Topic     string          `json:"topic"`
	RoomID    string          `json:"roomId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	Sequence  int64           `json:"sequence"`
	Stream    string          `json:"stream"`
	Cursor    string          `json:"cursor"`
}

// TimelineStream is the name of the global, totally-ordered event log that
// every topic stream's appends are replicated into.
const TimelineStream = "ws:timeline"

// Store is the abstract event-store port. Two backends satisfy it: an
// in-memory Mem store (tests, single-process deployments) and a Redis
// Streams-backed store (production, horizontal fan-out across WS gateways).
type Store interface {
	// Append writes payload to stream, returning it augmented with a
	// per-stream Sequence and a globally monotonic Cursor. Also replicates
	// the event into the global timeline unless stream is itself a queue
	// (keys prefixed "turn:").
	Append(ctx context.Context, stream string, payload any) (Event, error)

	// List returns every event appended to stream, in append order.
	List(ctx context.Context, stream string) ([]Event, error)

	// PopStream removes and returns the oldest event on a topic stream's
	// list representation. This is independent of the stream's replication
	// into the global timeline, which is never mutated by a pop: it is how
	// the internal event-relay endpoint drains backend-originated events
	// for delivery to the realtime gateway without re-delivering them.
	PopStream(ctx context.Context, stream string) (Event, bool, error)

	// Push enqueues payload onto the FIFO queue identified by key.
	Push(ctx context.Context, key string, payload any) error

	// Pop dequeues the oldest item on key's queue, if any.
	Pop(ctx context.Context, key string) (json.RawMessage, bool, error)

	// NextTimelineEvent returns the first timeline event strictly after
	// cursor, or the first event ever if cursor is empty. Returns
	// (nil, nil) if there is nothing newer.
	NextTimelineEvent(ctx context.Context, cursor string) (*Event, error)

	// ListTimeline returns timeline events strictly after cursor (or from
	// the start if cursor is empty), capped at limit when limit > 0.
	ListTimeline(ctx context.Context, cursor string, limit int) ([]Event, error)
}
