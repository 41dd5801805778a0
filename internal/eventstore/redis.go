package eventstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore backs the event store with Redis Streams for topic streams and
// the global timeline, and Redis lists for "turn:"-prefixed queues. This is
// the production backend; MemStore is used for tests and single-process
// deployments (see §9 "Redis or in-memory").
type RedisStore struct {
	client  *redis.Client
	maxLen  int64
	tlMaxLn int64
}

// NewRedisStore wraps an existing Redis client. maxLen/timelineMaxLen cap
// each stream's length (Redis XADD MAXLEN, approximate trimming); zero
// disables trimming.
func NewRedisStore(client *redis.Client, maxLen, timelineMaxLen int64) *RedisStore {
	return &RedisStore{client: client, maxLen: maxLen, tlMaxLn: timelineMaxLen}
}

func (r *RedisStore) Append(ctx context.Context, stream string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal event payload: %w", err)
	}

	seq, err := r.client.Incr(ctx, "seq:"+stream).Result()
	if err != nil {
		return Event{}, fmt.Errorf("increment stream sequence: %w", err)
	}

	evt := Event{Payload: raw, Sequence: seq, Stream: stream}
	extractTopicAndRoom(&evt, raw)

	evtJSON, err := json.Marshal(evt)
	if err != nil {
		return Event{}, fmt.Errorf("marshal stream event: %w", err)
	}

	args := &redis.XAddArgs{Stream: stream, Values: map[string]any{"data": evtJSON}}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}
	if _, err := r.client.XAdd(ctx, args).Result(); err != nil {
		return Event{}, fmt.Errorf("xadd %s: %w", stream, err)
	}

	if isQueueKey(stream) {
		return evt, nil
	}

	tlArgs := &redis.XAddArgs{Stream: TimelineStream, Values: map[string]any{"data": evtJSON}}
	if r.tlMaxLn > 0 {
		tlArgs.MaxLen = r.tlMaxLn
		tlArgs.Approx = true
	}
	entryID, err := r.client.XAdd(ctx, tlArgs).Result()
	if err != nil {
		return Event{}, fmt.Errorf("xadd %s: %w", TimelineStream, err)
	}

	evt.Cursor = entryID
	return evt, nil
}

func (r *RedisStore) List(ctx context.Context, stream string) ([]Event, error) {
	entries, err := r.client.XRange(ctx, stream, "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("xrange %s: %w", stream, err)
	}
	return decodeEntries(entries)
}

// PopStream reads and removes the oldest entry on stream's own XRANGE
// representation (distinct from the timeline, which XDEL never touches).
func (r *RedisStore) PopStream(ctx context.Context, stream string) (Event, bool, error) {
	entries, err := r.client.XRangeN(ctx, stream, "-", "+", 1).Result()
	if err != nil {
		return Event{}, false, fmt.Errorf("xrange %s: %w", stream, err)
	}
	if len(entries) == 0 {
		return Event{}, false, nil
	}
	events, err := decodeEntries(entries)
	if err != nil {
		return Event{}, false, err
	}
	if err := r.client.XDel(ctx, stream, entries[0].ID).Err(); err != nil {
		return Event{}, false, fmt.Errorf("xdel %s: %w", stream, err)
	}
	return events[0], true, nil
}

func (r *RedisStore) Push(ctx context.Context, key string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal queue payload: %w", err)
	}
	return r.client.RPush(ctx, key, raw).Err()
}

func (r *RedisStore) Pop(ctx context.Context, key string) (json.RawMessage, bool, error) {
	raw, err := r.client.LPop(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("lpop %s: %w", key, err)
	}
	return json.RawMessage(raw), true, nil
}

func (r *RedisStore) NextTimelineEvent(ctx context.Context, cursor string) (*Event, error) {
	start := rangeStart(cursor)
	entries, err := r.client.XRangeN(ctx, TimelineStream, start, "+", 1).Result()
	if err != nil {
		return nil, fmt.Errorf("xrange %s: %w", TimelineStream, err)
	}
	if len(entries) == 0 {
		return nil, nil
	}
	events, err := decodeEntries(entries)
	if err != nil {
		return nil, err
	}
	return &events[0], nil
}

func (r *RedisStore) ListTimeline(ctx context.Context, cursor string, limit int) ([]Event, error) {
	start := rangeStart(cursor)
	count := int64(0)
	if limit > 0 {
		count = int64(limit)
	}
	var (
		entries []redis.XMessage
		err     error
	)
	if count > 0 {
		entries, err = r.client.XRangeN(ctx, TimelineStream, start, "+", count).Result()
	} else {
		entries, err = r.client.XRange(ctx, TimelineStream, start, "+").Result()
	}
	if err != nil {
		return nil, fmt.Errorf("xrange %s: %w", TimelineStream, err)
	}
	return decodeEntries(entries)
}

// rangeStart renders the exclusive-range form of a Redis stream ID
// ("(<id>") so cursor-based replay never re-delivers the boundary event. An
// empty cursor means "from the beginning".
func rangeStart(cursor string) string {
	if cursor == "" {
		return "-"
	}
	return "(" + cursor
}

func decodeEntries(entries []redis.XMessage) ([]Event, error) {
	out := make([]Event, 0, len(entries))
	for _, entry := range entries {
		raw, ok := entry.Values["data"].(string)
		if !ok {
			return nil, fmt.Errorf("stream entry %s missing data field", entry.ID)
		}
		var evt Event
		if err := json.Unmarshal([]byte(raw), &evt); err != nil {
			return nil, fmt.Errorf("unmarshal stream entry %s: %w", entry.ID, err)
		}
		evt.Cursor = entry.ID
		out = append(out, evt)
	}
	return out, nil
}

var _ Store = (*RedisStore)(nil)
