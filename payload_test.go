package gqlstore

import (
	"testing"
)

var (
	friendsField = &Field{
		Name:   "friends",
		Kind:   ConnectionField,
		Args:   []Arg{{Name: "first", Variable: "count"}, {Name: "orderby", Value: "name"}},
		Fields: userFields,
	}
	viewerField = &Field{
		Name: "viewer",
		Kind: LinkedField,
		Fields: []*Field{
			{Name: "actor", Kind: LinkedField, Fields: append([]*Field{friendsField}, userFields...)},
			{Name: "addresses", Kind: PluralField, Fields: []*Field{{Name: "city"}}},
		},
	}
)

func viewerSelector(count int) Selector {
	return Selector{
		DataID:    RootID,
		Fields:    []*Field{viewerField},
		Variables: map[string]any{"count": count},
	}
}

func viewerPayload() Payload {
	return Payload{
		"viewer": Payload{
			"actor": Payload{
				"id":         "4",
				"__typename": "User",
				"name":       "Zuck",
				"friends": Payload{
					"edges": []any{
						Payload{"cursor": "c5", "node": Payload{"id": "5", "name": "Chris"}},
						Payload{"cursor": "c6", "node": Payload{"id": "6", "name": "Dustin"}},
					},
					"pageInfo": Payload{"hasNextPage": true, "endCursor": "c6"},
				},
			},
			"addresses": []any{
				Payload{"city": "Menlo Park"},
				nil,
				Payload{"city": "Palo Alto"},
			},
		},
	}
}

func TestField_StorageKey(t *testing.T) {
	vars := map[string]any{"count": 10}
	deepEqual(t, (&Field{Name: "name"}).StorageKey(vars), "name")
	deepEqual(t, friendsField.StorageKey(vars), `friends{"first":10,"orderby":"name"}`)
	deepEqual(t, friendsField.connectionStorageKey(vars), `friends{"orderby":"name"}`)
	deepEqual(t, nodeField.StorageKey(map[string]any{"id": "4"}), `node{"id":"4"}`)
	deepEqual(t, nodeField.identifyingArgValue(map[string]any{"id": "4"}), "4")
	deepEqual(t, (&Field{Name: "pic", Args: []Arg{{Name: "size", Variable: "missing"}}}).StorageKey(vars), "pic")
}

func TestSelector_KeyIsStable(t *testing.T) {
	a := viewerSelector(10)
	b := Selector{DataID: RootID, Fields: []*Field{viewerField}, Variables: map[string]any{"count": 10}}
	deepEqual(t, a.Key(), b.Key())
	if a.Key() == viewerSelector(20).Key() {
		t.Fatalf("** selectors with different variables share key %q", a.Key())
	}
}

func TestCommitPayload_Normalizes(t *testing.T) {
	env := setup(t, Options{})
	cs := env.CommitPayload(viewerSelector(2), viewerPayload())

	s := env.BaseStore()
	viewerID, ok := s.RootCallID("viewer", "")
	deepEqual(t, viewerID, DataID("client:viewer"))
	deepEqual(t, ok, true)

	actorID, _ := s.LinkedRecordID(viewerID, "actor")
	deepEqual(t, actorID, DataID("4"))
	deepEqual(t, s.Type("4"), "User")
	deepEqual(t, field(t, s, "4", "name"), any("Zuck"))

	connID, _ := s.LinkedRecordID("4", `friends{"orderby":"name"}`)
	deepEqual(t, connID, DataID(`client:4:friends{"orderby":"name"}`))
	rng := s.RangeMetadata(connID)
	deepEqual(t, len(rng.Edges), 2)
	deepEqual(t, rng.Edges[1].NodeID, DataID("6"))
	deepEqual(t, rng.PageInfo, PageInfo{HasNextPage: true, EndCursor: "c6"})
	deepEqual(t, field(t, s, rng.Edges[0].EdgeID, "cursor"), any("c5"))
	deepEqual(t, s.RangeOwnerID(rng.Edges[0].EdgeID), connID)

	addrs, _ := s.LinkedRecordIDs(viewerID, "addresses")
	deepEqual(t, addrs, []DataID{"client:viewer:addresses:0", "client:viewer:addresses:2"})
	deepEqual(t, s.PathToRecord("client:viewer:addresses:2").String(), "client:root/viewer/addresses:2")

	for _, id := range []DataID{RootID, viewerID, "4", "5", "6", connID} {
		if cs.Op(id) != OpCreate {
			t.Errorf("** %s: got %v, wanted create", id, cs.Op(id))
		}
	}
}

func TestCommitPayload_SecondPageAppendsEdges(t *testing.T) {
	env := setup(t, Options{})
	env.CommitPayload(viewerSelector(2), viewerPayload())

	page2 := viewerPayload()
	actor := page2["viewer"].(Payload)["actor"].(Payload)
	actor["friends"] = Payload{
		"edges":    []any{Payload{"cursor": "c7", "node": Payload{"id": "7", "name": "Eduardo"}}},
		"pageInfo": Payload{"hasNextPage": false, "endCursor": "c7"},
	}
	cs := env.CommitPayload(viewerSelector(1), page2)

	connID := DataID(`client:4:friends{"orderby":"name"}`)
	rng := env.BaseStore().RangeMetadata(connID)
	deepEqual(t, len(rng.Edges), 3)
	deepEqual(t, cs.Op(connID), OpUpdate)
	deepEqual(t, cs.Op("4"), OpNone)
}

func TestLookup_ReadsBackWhatWasWritten(t *testing.T) {
	env := setup(t, Options{})
	env.CommitPayload(viewerSelector(2), viewerPayload())

	snap := env.Lookup(viewerSelector(2))
	deepEqual(t, snap.IsMissingData, false)

	viewer := snap.Data["viewer"].(Payload)
	actor := viewer["actor"].(Payload)
	deepEqual(t, actor["__dataID__"], any(DataID("4")))
	deepEqual(t, actor["name"], any("Zuck"))

	friends := actor["friends"].(Payload)
	edges := friends["edges"].([]any)
	deepEqual(t, len(edges), 2)
	deepEqual(t, edges[0].(Payload)["node"].(Payload)["name"], any("Chris"))
	deepEqual(t, friends["pageInfo"].(Payload)["hasNextPage"], any(true))

	addrs := viewer["addresses"].([]any)
	deepEqual(t, addrs[1].(Payload)["city"], any("Palo Alto"))

	if _, ok := snap.SeenRecords["6"]; !ok {
		t.Fatalf("** record 6 not seen")
	}
}

func TestLookup_MissingData(t *testing.T) {
	env := setup(t, Options{})
	snap := env.Lookup(nodeSelector("4"))
	deepEqual(t, snap.IsMissingData, true)

	env.CommitPayload(nodeSelector("4"), Payload{"node": Payload{"id": "4"}})
	snap = env.Lookup(nodeSelector("4"))
	deepEqual(t, snap.IsMissingData, true)

	env.CommitPayload(nodeSelector("4"), userPayload("4", "Zuck"))
	snap = env.Lookup(nodeSelector("4"))
	deepEqual(t, snap.IsMissingData, false)
	deepEqual(t, snap.Data["node"].(Payload)["name"], any("Zuck"))
}

func TestLookup_NullLink(t *testing.T) {
	env := setup(t, Options{})
	env.CommitPayload(nodeSelector("4"), Payload{"node": nil})
	snap := env.Lookup(nodeSelector("4"))
	deepEqual(t, snap.IsMissingData, false)
	v, ok := snap.Data["node"]
	deepEqual(t, ok, true)
	deepEqual(t, v, nil)
}
