// Package store implements the single-writer, in-process transactional
// store for rooms, members, strokes, objects, turns, and audit logs.
package store

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"kidscanvas/internal/domain"
)

// Store is a map-of-maps keyed by entity id, guarded by one mutex so that
// at most one transaction body executes at a time (see TxFn).
type Store struct {
	mu sync.Mutex

	rooms     map[uuid.UUID]domain.Room
	members   map[memberKey]domain.RoomMember
	strokes   map[uuid.UUID]domain.Stroke
	objects   map[uuid.UUID]domain.CanvasObject
	turns     map[uuid.UUID]domain.Turn
	auditLogs map[uuid.UUID]domain.AuditLog

	roomMemberIDs map[uuid.UUID][]uuid.UUID // join order
	roomTurnIDs   map[uuid.UUID][]uuid.UUID // sequence order
	roomStrokeIDs map[uuid.UUID][]uuid.UUID // insertion order (re-sorted by ts on read)
	roomObjectIDs map[uuid.UUID][]uuid.UUID // insertion order (created_at order)

	snapshotPath string
}

type memberKey struct {
	RoomID uuid.UUID
	UserID uuid.UUID
}

// New creates an empty store. snapshotPath, if non-empty, is written to
// after every transaction that changes state.
func New(snapshotPath string) *Store {
	return &Store{
		rooms:         make(map[uuid.UUID]domain.Room),
		members:       make(map[memberKey]domain.RoomMember),
		strokes:       make(map[uuid.UUID]domain.Stroke),
		objects:       make(map[uuid.UUID]domain.CanvasObject),
		turns:         make(map[uuid.UUID]domain.Turn),
		auditLogs:     make(map[uuid.UUID]domain.AuditLog),
		roomMemberIDs: make(map[uuid.UUID][]uuid.UUID),
		roomTurnIDs:   make(map[uuid.UUID][]uuid.UUID),
		roomStrokeIDs: make(map[uuid.UUID][]uuid.UUID),
		roomObjectIDs: make(map[uuid.UUID][]uuid.UUID),
		snapshotPath:  snapshotPath,
	}
}

// TxFn is the body of a transaction. A non-nil return aborts the transaction
// with no visible mutation.
type TxFn func(tx *Tx) error

// WithTx serializes against every other transaction on this store, runs fn
// against a buffering Tx, and atomically applies its buffered mutations on a
// nil return. A log appended via Tx.AppendAuditLogAlways is written
// regardless of fn's outcome, since some audit entries (e.g. object.blocked)
// must survive the very rejection they describe. It reports whether
// anything changed, which gates an optional snapshot write.
func (s *Store) WithTx(fn TxFn) (changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := newTx(s)
	fnErr := fn(tx)

	for _, log := range tx.alwaysAuditLogs {
		s.auditLogs[log.ID] = log
		changed = true
	}

	if fnErr == nil {
		if tx.apply() {
			changed = true
		}
	}

	if changed && s.snapshotPath != "" {
		if writeErr := s.saveSnapshotLocked(s.snapshotPath); writeErr != nil {
			logSnapshotFailure(writeErr)
		}
	}
	return changed, fnErr
}

// listStrokesLocked returns strokes for a room ordered by ts ascending, with
// id as a stable tie-break. Callers must hold s.mu.
func (s *Store) listStrokesLocked(roomID uuid.UUID) []domain.Stroke {
	ids := s.roomStrokeIDs[roomID]
	out := make([]domain.Stroke, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.strokes[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Ts.Equal(out[j].Ts) {
			return out[i].Ts.Before(out[j].Ts)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (s *Store) listObjectsLocked(roomID uuid.UUID) []domain.CanvasObject {
	ids := s.roomObjectIDs[roomID]
	out := make([]domain.CanvasObject, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.objects[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *Store) listTurnsForRoomLocked(roomID uuid.UUID) []domain.Turn {
	ids := s.roomTurnIDs[roomID]
	out := make([]domain.Turn, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.turns[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Sequence < out[j].Sequence
	})
	return out
}

func (s *Store) listMembersLocked(roomID uuid.UUID) []domain.RoomMember {
	ids := s.roomMemberIDs[roomID]
	out := make([]domain.RoomMember, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.members[memberKey{RoomID: roomID, UserID: id}])
	}
	return out
}

func (s *Store) listAuditLogsLocked(roomID *uuid.UUID) []domain.AuditLog {
	out := make([]domain.AuditLog, 0, len(s.auditLogs))
	for _, log := range s.auditLogs {
		if roomID != nil && log.RoomID != *roomID {
			continue
		}
		out = append(out, log)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Ts.Before(out[j].Ts)
	})
	return out
}
