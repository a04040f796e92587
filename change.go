package gqlstore

import "fmt"

type (
	// ChangeSet lists the records created and updated by one write pass.
	ChangeSet struct {
		Created map[DataID]struct{}
		Updated map[DataID]struct{}
	}

	Op int
)

const (
	OpNone   Op = 0
	OpCreate Op = 1
	OpUpdate Op = 2
)

func (cs ChangeSet) IsEmpty() bool {
	return len(cs.Created) == 0 && len(cs.Updated) == 0
}

func (cs ChangeSet) Op(id DataID) Op {
	if _, ok := cs.Created[id]; ok {
		return OpCreate
	}
	if _, ok := cs.Updated[id]; ok {
		return OpUpdate
	}
	return OpNone
}

func (cs ChangeSet) CreatedIDs() []DataID {
	return sortedKeys(cs.Created)
}

func (cs ChangeSet) UpdatedIDs() []DataID {
	return sortedKeys(cs.Updated)
}

func (v Op) String() string {
	switch v {
	case OpNone:
		return "none"
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	default:
		return fmt.Sprintf("invalid op %d", int(v))
	}
}

// ChangeTracker accumulates the ChangeSet of a single write pass.
type ChangeTracker struct {
	created map[DataID]struct{}
	updated map[DataID]struct{}
}

func NewChangeTracker() *ChangeTracker {
	return &ChangeTracker{
		created: make(map[DataID]struct{}),
		updated: make(map[DataID]struct{}),
	}
}

func (t *ChangeTracker) CreateID(id DataID) {
	delete(t.updated, id)
	t.created[id] = struct{}{}
}

// UpdateID marks id as updated unless it was created in this pass.
func (t *ChangeTracker) UpdateID(id DataID) {
	if _, ok := t.created[id]; ok {
		return
	}
	t.updated[id] = struct{}{}
}

func (t *ChangeTracker) HasChange(id DataID) bool {
	_, c := t.created[id]
	_, u := t.updated[id]
	return c || u
}

func (t *ChangeTracker) ChangeSet() ChangeSet {
	cs := ChangeSet{
		Created: make(map[DataID]struct{}, len(t.created)),
		Updated: make(map[DataID]struct{}, len(t.updated)),
	}
	for id := range t.created {
		cs.Created[id] = struct{}{}
	}
	for id := range t.updated {
		cs.Updated[id] = struct{}{}
	}
	return cs
}
