package eventstore

import (
	"context"
	"testing"
)

func TestAppend_ReplicatesIntoTimelineWithIncreasingCursors(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	e1, err := s.Append(ctx, "ws:events", map[string]any{"topic": "stroke", "roomId": "room-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e2, err := s.Append(ctx, "ws:object-events", map[string]any{"topic": "object", "roomId": "room-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e3, err := s.Append(ctx, "ws:events", map[string]any{"topic": "turn", "roomId": "room-2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !(e1.Cursor < e2.Cursor && e2.Cursor < e3.Cursor) {
		t.Fatalf("expected strictly increasing cursors, got %s, %s, %s", e1.Cursor, e2.Cursor, e3.Cursor)
	}
}

func TestListTimeline_ConcatenatedWithNextMatchesListAll(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	for i := 0; i < 5; i++ {
		if _, err := s.Append(ctx, "ws:events", map[string]any{"topic": "stroke", "roomId": "room-1", "i": i}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	all, err := s.ListTimeline(ctx, "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 events, got %d", len(all))
	}

	c1 := all[0].Cursor
	rest, err := s.ListTimeline(ctx, c1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rest) != 4 {
		t.Fatalf("expected 4 remaining events, got %d", len(rest))
	}

	next, err := s.NextTimelineEvent(ctx, c1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next == nil || next.Cursor != rest[0].Cursor {
		t.Fatalf("expected next event to match head of remaining list")
	}
}

func TestQueue_PushPopFIFO(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	if err := s.Push(ctx, "turn:events", map[string]any{"sequence": 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Push(ctx, "turn:events", map[string]any{"sequence": 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, ok, err := s.Pop(ctx, "turn:events")
	if err != nil || !ok {
		t.Fatalf("expected first pop to succeed, err=%v ok=%v", err, ok)
	}
	if string(first) != `{"sequence":1}` {
		t.Fatalf("unexpected first payload: %s", first)
	}

	second, ok, err := s.Pop(ctx, "turn:events")
	if err != nil || !ok {
		t.Fatalf("expected second pop to succeed, err=%v ok=%v", err, ok)
	}
	if string(second) != `{"sequence":2}` {
		t.Fatalf("unexpected second payload: %s", second)
	}

	_, ok, err = s.Pop(ctx, "turn:events")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected empty queue to report ok=false")
	}
}

func TestPopStream_RemovesOldestWithoutTouchingTimeline(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	if _, err := s.Append(ctx, "ws:object-events", map[string]any{"topic": "object", "roomId": "room-1", "i": 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Append(ctx, "ws:object-events", map[string]any{"topic": "object", "roomId": "room-1", "i": 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, ok, err := s.PopStream(ctx, "ws:object-events")
	if err != nil || !ok {
		t.Fatalf("expected first pop to succeed, err=%v ok=%v", err, ok)
	}
	if first.Sequence != 1 {
		t.Fatalf("expected to pop the oldest entry first, got sequence %d", first.Sequence)
	}

	remaining, err := s.List(ctx, "ws:object-events")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Sequence != 2 {
		t.Fatalf("expected one remaining entry with sequence 2, got %+v", remaining)
	}

	timeline, err := s.ListTimeline(ctx, "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(timeline) != 2 {
		t.Fatalf("expected PopStream to leave the timeline untouched, got %d entries", len(timeline))
	}

	if _, ok, err = s.PopStream(ctx, "ws:object-events"); err != nil || !ok {
		t.Fatalf("expected second pop to succeed, err=%v ok=%v", err, ok)
	}
	if _, ok, err = s.PopStream(ctx, "ws:object-events"); err != nil || ok {
		t.Fatalf("expected empty stream to report ok=false, err=%v ok=%v", err, ok)
	}
}
