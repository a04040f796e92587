package gqlstore

import (
	"testing"
)

func TestClientID(t *testing.T) {
	deepEqual(t, ClientID("", "viewer"), DataID("client:viewer"))
	deepEqual(t, ClientID("4", "address"), DataID("client:4:address"))
	deepEqual(t, ClientID("client:viewer", "address"), DataID("client:viewer:address"))
	deepEqual(t, IsClientID("client:viewer"), true)
	deepEqual(t, IsClientID("4"), false)
}

func TestRecordStore_Layers(t *testing.T) {
	a := newRecordArena()
	a.cached["1"] = &Record{ID: "1", Typename: "User", Fields: map[string]any{"name": "cached"}}
	a.cached["2"] = &Record{ID: "2", Fields: map[string]any{"name": "only cached"}}
	a.base["1"] = &Record{ID: "1", Typename: "User", Fields: map[string]any{"name": "base", "age": 30}}
	a.base["3"] = nil
	a.queued["1"] = &Record{ID: "1", Fields: map[string]any{"name": "queued"}, MutationIDs: []ClientMutationID{"m0"}}
	a.queued["2"] = nil

	cached, base, queued := a.store(layerCached), a.store(layerBase), a.store(layerQueued)

	deepEqual(t, field(t, cached, "1", "name"), any("cached"))
	deepEqual(t, field(t, base, "1", "name"), any("base"))
	deepEqual(t, field(t, queued, "1", "name"), any("queued"))
	deepEqual(t, field(t, queued, "1", "age"), any(30))
	deepEqual(t, queued.Type("1"), "User")

	deepEqual(t, base.RecordState("2"), Existent)
	deepEqual(t, queued.RecordState("2"), Nonexistent)
	deepEqual(t, base.RecordState("3"), Nonexistent)
	deepEqual(t, cached.RecordState("3"), Unknown)
	deepEqual(t, queued.RecordState("404"), Unknown)

	deepEqual(t, queued.HasOptimisticUpdate("1"), true)
	deepEqual(t, queued.HasOptimisticUpdate("3"), false)
	deepEqual(t, queued.ClientMutationIDs("1"), []ClientMutationID{"m0"})
	assertPanics(t, func() { base.HasOptimisticUpdate("1") })
	assertPanics(t, func() { cached.ClientMutationIDs("1") })
}

func TestRecordStore_QueuedOverlayDoesNotMutateBase(t *testing.T) {
	a := newRecordArena()
	a.base["1"] = &Record{ID: "1", Fields: map[string]any{"name": "base"}}
	a.queued["1"] = &Record{ID: "1", Fields: map[string]any{"name": "queued"}}

	rec, _ := a.store(layerQueued).Get("1")
	rec.Fields["name"] = "scribbled"
	deepEqual(t, a.base["1"].Fields["name"], any("base"))
}

func TestRecordStore_Links(t *testing.T) {
	a := newRecordArena()
	a.base["1"] = &Record{
		ID:        "1",
		Fields:    map[string]any{"bestFriend": nil, "nicknames": nil},
		Links:     map[string]DataID{"address": "client:1:address"},
		LinkLists: map[string][]DataID{"friends": {"2", "3"}},
	}
	s := a.store(layerBase)

	id, ok := s.LinkedRecordID("1", "address")
	deepEqual(t, id, DataID("client:1:address"))
	deepEqual(t, ok, true)

	id, ok = s.LinkedRecordID("1", "bestFriend")
	deepEqual(t, id, DataID(""))
	deepEqual(t, ok, true)

	_, ok = s.LinkedRecordID("1", "unfetched")
	deepEqual(t, ok, false)

	ids, ok := s.LinkedRecordIDs("1", "friends")
	deepEqual(t, ids, []DataID{"2", "3"})
	deepEqual(t, ok, true)

	ids, ok = s.LinkedRecordIDs("1", "nicknames")
	deepEqual(t, len(ids), 0)
	deepEqual(t, ok, true)
}

func TestRecordStore_RootCalls(t *testing.T) {
	a := newRecordArena()
	a.cachedRootCalls.put("viewer", "", "client:viewer")
	a.rootCalls.put("node", "4", "4")

	id, ok := a.store(layerCached).RootCallID("viewer", "")
	deepEqual(t, id, DataID("client:viewer"))
	deepEqual(t, ok, true)

	_, ok = a.store(layerCached).RootCallID("node", "4")
	deepEqual(t, ok, false)

	id, ok = a.store(layerQueued).RootCallID("node", "4")
	deepEqual(t, id, DataID("4"))
	deepEqual(t, ok, true)
}

func TestRecordStore_PathToRecord(t *testing.T) {
	path := &RecordPath{RootID: "4", Steps: []string{"address"}}
	a := newRecordArena()
	a.base["client:4:address"] = &Record{ID: "client:4:address", Path: path}
	deepEqual(t, a.store(layerBase).PathToRecord("client:4:address"), path)
	isnil(t, a.store(layerBase).PathToRecord("missing"))
	deepEqual(t, path.String(), "4/address")
}
