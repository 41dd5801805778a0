package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MemStore is a sync.Mutex-guarded in-memory event store. It is the default
// backend for tests and single-process deployments; see RedisStore for the
// horizontally-scalable equivalent.
type MemStore struct {
	mu sync.Mutex

	queues    map[string][]json.RawMessage
	streams   map[string][]Event
	sequences map[string]int64
	timeline  []Event
	cursorSeq int64
}

// NewMemStore creates an empty in-memory event store.
func NewMemStore() *MemStore {
	return &MemStore{
		queues:    make(map[string][]json.RawMessage),
		streams:   make(map[string][]Event),
		sequences: make(map[string]int64),
	}
}

func isQueueKey(key string) bool {
	return strings.HasPrefix(key, "turn:")
}

// nextCursor renders the shared monotonic counter as a fixed-width,
// zero-padded decimal so lexicographic string comparison matches insertion
// order (per spec: "opaque to clients but total-order-preserving").
func (m *MemStore) nextCursor() string {
	m.cursorSeq++
	return fmt.Sprintf("%020d", m.cursorSeq)
}

func (m *MemStore) Append(_ context.Context, stream string, payload any) (Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal event payload: %w", err)
	}

	m.sequences[stream]++
	seq := m.sequences[stream]

	evt := Event{
		Payload:   raw,
		Sequence:  seq,
		Stream:    stream,
		Timestamp: time.Now().UTC(),
	}
	extractTopicAndRoom(&evt, raw)

	m.streams[stream] = append(m.streams[stream], evt)

	if isQueueKey(stream) {
		return evt, nil
	}

	timelineEvt := evt
	timelineEvt.Cursor = m.nextCursor()
	m.timeline = append(m.timeline, timelineEvt)

	return timelineEvt, nil
}

func (m *MemStore) List(_ context.Context, stream string) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Event, len(m.streams[stream]))
	copy(out, m.streams[stream])
	return out, nil
}

func (m *MemStore) PopStream(_ context.Context, stream string) (Event, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.streams[stream]
	if len(items) == 0 {
		return Event{}, false, nil
	}
	head := items[0]
	m.streams[stream] = items[1:]
	return head, true, nil
}

func (m *MemStore) Push(_ context.Context, key string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal queue payload: %w", err)
	}
	m.queues[key] = append(m.queues[key], raw)
	return nil
}

func (m *MemStore) Pop(_ context.Context, key string) (json.RawMessage, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.queues[key]
	if len(items) == 0 {
		return nil, false, nil
	}
	item := items[0]
	m.queues[key] = items[1:]
	return item, true, nil
}

func (m *MemStore) NextTimelineEvent(_ context.Context, cursor string) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cursor == "" {
		if len(m.timeline) == 0 {
			return nil, nil
		}
		evt := m.timeline[0]
		return &evt, nil
	}
	for _, evt := range m.timeline {
		if evt.Cursor > cursor {
			e := evt
			return &e, nil
		}
	}
	return nil, nil
}

func (m *MemStore) ListTimeline(_ context.Context, cursor string, limit int) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Event
	for _, evt := range m.timeline {
		if cursor != "" && evt.Cursor <= cursor {
			continue
		}
		out = append(out, evt)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// extractTopicAndRoom pulls "topic" and "roomId" out of the raw payload so
// they're queryable on Event without re-parsing Payload at every filter
// site (the WS fan-out filters by RoomID on every event it considers).
func extractTopicAndRoom(evt *Event, raw json.RawMessage) {
	var probe struct {
		Topic  string `json:"topic"`
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil {
		evt.Topic = probe.Topic
		evt.RoomID = probe.RoomID
	}
}

var _ Store = (*MemStore)(nil)
