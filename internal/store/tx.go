package store

import (
	"github.com/google/uuid"

	"kidscanvas/internal/domain"
)

// Tx buffers mutations for one transaction body; nothing is visible to other
// transactions until the parent Store.WithTx call applies it on success.
type Tx struct {
	s *Store

	pendingRooms     map[uuid.UUID]domain.Room
	pendingMembers   map[memberKey]domain.RoomMember
	pendingStrokes   map[uuid.UUID]domain.Stroke // new strokes
	updatedStrokes   map[uuid.UUID]domain.Stroke // existing strokes with object_id set
	pendingObjects   map[uuid.UUID]domain.CanvasObject
	pendingTurns     map[uuid.UUID]domain.Turn // new turns
	updatedTurns     map[uuid.UUID]domain.Turn // existing turns transitioned
	pendingAuditLogs []domain.AuditLog
	alwaysAuditLogs  []domain.AuditLog // applied even if the tx body returns an error
}

func newTx(s *Store) *Tx {
	return &Tx{
		s:              s,
		pendingRooms:   make(map[uuid.UUID]domain.Room),
		pendingMembers: make(map[memberKey]domain.RoomMember),
		pendingStrokes: make(map[uuid.UUID]domain.Stroke),
		updatedStrokes: make(map[uuid.UUID]domain.Stroke),
		pendingObjects: make(map[uuid.UUID]domain.CanvasObject),
		pendingTurns:   make(map[uuid.UUID]domain.Turn),
		updatedTurns:   make(map[uuid.UUID]domain.Turn),
	}
}

// apply writes every buffered mutation into the parent store's maps and
// indexes. Returns whether anything changed. Caller must hold s.mu.
func (tx *Tx) apply() bool {
	changed := false
	s := tx.s

	for id, room := range tx.pendingRooms {
		if _, existed := s.rooms[id]; !existed {
			changed = true
		} else {
			changed = true
		}
		s.rooms[id] = room
	}

	for key, member := range tx.pendingMembers {
		if _, existed := s.members[key]; !existed {
			s.roomMemberIDs[key.RoomID] = append(s.roomMemberIDs[key.RoomID], key.UserID)
		}
		s.members[key] = member
		changed = true
	}

	for id, stroke := range tx.pendingStrokes {
		s.strokes[id] = stroke
		s.roomStrokeIDs[stroke.RoomID] = append(s.roomStrokeIDs[stroke.RoomID], id)
		changed = true
	}

	for id, stroke := range tx.updatedStrokes {
		s.strokes[id] = stroke
		changed = true
	}

	for id, obj := range tx.pendingObjects {
		s.objects[id] = obj
		s.roomObjectIDs[obj.RoomID] = append(s.roomObjectIDs[obj.RoomID], id)
		changed = true
	}

	for id, turn := range tx.pendingTurns {
		s.turns[id] = turn
		s.roomTurnIDs[turn.RoomID] = append(s.roomTurnIDs[turn.RoomID], id)
		changed = true
	}

	for id, turn := range tx.updatedTurns {
		s.turns[id] = turn
		changed = true
	}

	for _, log := range tx.pendingAuditLogs {
		s.auditLogs[log.ID] = log
		changed = true
	}

	return changed
}

// --- Reads. The single-entity getters (GetRoom, GetRoomMember, GetStroke,
// GetStrokes, GetObject, GetTurn) see both the parent store and this
// transaction's own buffered writes, so a write followed by a read of the
// same entity is consistent. The List*/GetTurnsForRoom methods read only the
// parent store's committed state. ---

func (tx *Tx) GetRoom(id uuid.UUID) (domain.Room, error) {
	if room, ok := tx.pendingRooms[id]; ok {
		return room, nil
	}
	room, ok := tx.s.rooms[id]
	if !ok {
		return domain.Room{}, domain.NewNotFoundError("room_not_found", id)
	}
	return room, nil
}

func (tx *Tx) GetRoomMember(roomID, userID uuid.UUID) (domain.RoomMember, error) {
	key := memberKey{RoomID: roomID, UserID: userID}
	if m, ok := tx.pendingMembers[key]; ok {
		return m, nil
	}
	m, ok := tx.s.members[key]
	if !ok {
		return domain.RoomMember{}, domain.NewNotFoundError("member_not_found", userID)
	}
	return m, nil
}

func (tx *Tx) ListRoomMembers(roomID uuid.UUID) []domain.RoomMember {
	return tx.s.listMembersLocked(roomID)
}

func (tx *Tx) GetStroke(id uuid.UUID) (domain.Stroke, error) {
	if st, ok := tx.updatedStrokes[id]; ok {
		return st, nil
	}
	if st, ok := tx.pendingStrokes[id]; ok {
		return st, nil
	}
	st, ok := tx.s.strokes[id]
	if !ok {
		return domain.Stroke{}, domain.NewNotFoundError("stroke_not_found", id)
	}
	return st, nil
}

// GetStrokes returns strokes in the order of the input ids. It fails if any
// id is missing or belongs to another room.
func (tx *Tx) GetStrokes(roomID uuid.UUID, ids []uuid.UUID) ([]domain.Stroke, error) {
	out := make([]domain.Stroke, 0, len(ids))
	for _, id := range ids {
		st, err := tx.GetStroke(id)
		if err != nil {
			return nil, &domain.BadRequestError{Message: "strokes do not belong to the room"}
		}
		if st.RoomID != roomID {
			return nil, &domain.BadRequestError{Message: "strokes do not belong to the room"}
		}
		out = append(out, st)
	}
	return out, nil
}

func (tx *Tx) ListStrokes(roomID uuid.UUID) []domain.Stroke {
	return tx.s.listStrokesLocked(roomID)
}

func (tx *Tx) GetObject(id uuid.UUID) (domain.CanvasObject, error) {
	if obj, ok := tx.pendingObjects[id]; ok {
		return obj, nil
	}
	obj, ok := tx.s.objects[id]
	if !ok {
		return domain.CanvasObject{}, domain.NewNotFoundError("object_not_found", id)
	}
	return obj, nil
}

func (tx *Tx) ListObjects(roomID uuid.UUID) []domain.CanvasObject {
	return tx.s.listObjectsLocked(roomID)
}

func (tx *Tx) GetTurn(id uuid.UUID) (domain.Turn, error) {
	if t, ok := tx.updatedTurns[id]; ok {
		return t, nil
	}
	if t, ok := tx.pendingTurns[id]; ok {
		return t, nil
	}
	t, ok := tx.s.turns[id]
	if !ok {
		return domain.Turn{}, domain.NewNotFoundError("turn_not_found", id)
	}
	return t, nil
}

func (tx *Tx) GetTurnsForRoom(roomID uuid.UUID) []domain.Turn {
	return tx.s.listTurnsForRoomLocked(roomID)
}

func (tx *Tx) ListAuditLogs(roomID *uuid.UUID) []domain.AuditLog {
	return tx.s.listAuditLogsLocked(roomID)
}

// --- Writes. Buffered; visible to this Tx's own reads but not applied to
// the store until the transaction body returns nil. ---

func (tx *Tx) SaveRoom(room domain.Room) {
	tx.pendingRooms[room.ID] = room
}

func (tx *Tx) SaveRoomMember(member domain.RoomMember) {
	tx.pendingMembers[memberKey{RoomID: member.RoomID, UserID: member.UserID}] = member
}

func (tx *Tx) SaveStroke(stroke domain.Stroke) {
	tx.pendingStrokes[stroke.ID] = stroke
}

// UpdateStroke sets the stroke's ObjectID. ObjectID is immutable once set;
// callers are expected to have checked that before calling.
func (tx *Tx) UpdateStroke(stroke domain.Stroke, objectID uuid.UUID) {
	stroke.ObjectID = &objectID
	tx.updatedStrokes[stroke.ID] = stroke
}

func (tx *Tx) SaveObject(obj domain.CanvasObject) {
	tx.pendingObjects[obj.ID] = obj
}

func (tx *Tx) SaveTurn(turn domain.Turn) {
	tx.pendingTurns[turn.ID] = turn
}

func (tx *Tx) UpdateTurn(turn domain.Turn) {
	tx.updatedTurns[turn.ID] = turn
}

func (tx *Tx) AppendAuditLog(log domain.AuditLog) {
	tx.pendingAuditLogs = append(tx.pendingAuditLogs, log)
}

// AppendAuditLogAlways buffers an audit log that Store.WithTx writes even if
// the transaction body goes on to return an error, aborting every other
// buffered write. Used for entries that must survive the rejection they
// describe, e.g. object.blocked on a moderation-rejected commit.
func (tx *Tx) AppendAuditLogAlways(log domain.AuditLog) {
	tx.alwaysAuditLogs = append(tx.alwaysAuditLogs, log)
}
