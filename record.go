package gqlstore

import (
	"fmt"
	"slices"
	"strings"
)

// DataID identifies a normalized record.
type DataID string

// RootID is the record holding the top-level fields of every query.
const RootID DataID = "client:root"

const clientIDPrefix = "client:"

// IsClientID reports whether id was synthesized on the client rather than
// assigned by the server.
func IsClientID(id DataID) bool {
	return strings.HasPrefix(string(id), clientIDPrefix)
}

// ClientID derives the identity of an unidentified object reached through
// storageKey from parent. The same parent and key always give the same id.
func ClientID(parent DataID, storageKey string) DataID {
	if parent == "" {
		return DataID(clientIDPrefix + storageKey)
	}
	if IsClientID(parent) {
		return DataID(string(parent) + ":" + storageKey)
	}
	return DataID(clientIDPrefix + string(parent) + ":" + storageKey)
}

func clientItemID(parent DataID, storageKey string, idx int) DataID {
	return ClientID(parent, fmt.Sprintf("%s:%d", storageKey, idx))
}

func edgeID(connectionID, nodeID DataID) DataID {
	return ClientID(connectionID, "edge:"+string(nodeID))
}

type RecordState int

const (
	Unknown RecordState = iota
	Existent
	Nonexistent
)

func (v RecordState) String() string {
	switch v {
	case Unknown:
		return "unknown"
	case Existent:
		return "existent"
	case Nonexistent:
		return "nonexistent"
	default:
		return fmt.Sprintf("invalid state %d", int(v))
	}
}

// RecordPath describes how a client record was reached: the nearest record
// with a server identity (or RootID) followed by the storage keys traversed.
type RecordPath struct {
	RootID DataID   `msgpack:"r" json:"root"`
	Steps  []string `msgpack:"s" json:"steps"`
}

func (p *RecordPath) child(storageKey string) *RecordPath {
	return &RecordPath{
		RootID: p.RootID,
		Steps:  append(slices.Clip(p.Steps), storageKey),
	}
}

func (p *RecordPath) String() string {
	if p == nil {
		return "<none>"
	}
	return string(p.RootID) + "/" + strings.Join(p.Steps, "/")
}

// Record is one normalized graph node. A storage key lives in exactly one of
// Fields, Links and LinkLists. A key present in Fields with a nil value means
// the server returned null (for scalars and links alike); a missing key means
// the field has not been fetched.
type Record struct {
	ID          DataID              `msgpack:"id" json:"__dataID__"`
	Typename    string              `msgpack:"t,omitempty" json:"__typename,omitempty"`
	Path        *RecordPath         `msgpack:"p,omitempty" json:"__path__,omitempty"`
	Fields      map[string]any      `msgpack:"f,omitempty" json:"fields,omitempty"`
	Links       map[string]DataID   `msgpack:"l,omitempty" json:"links,omitempty"`
	LinkLists   map[string][]DataID `msgpack:"ll,omitempty" json:"linkLists,omitempty"`
	MutationIDs []ClientMutationID  `msgpack:"m,omitempty" json:"__mutationIDs__,omitempty"`
	Range       *Range              `msgpack:"r,omitempty" json:"__range__,omitempty"`
}

func newRecord(id DataID, typename string) *Record {
	return &Record{ID: id, Typename: typename}
}

// Clone returns a copy that shares no maps or slices with r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := &Record{
		ID:          r.ID,
		Typename:    r.Typename,
		Path:        r.Path,
		MutationIDs: slices.Clone(r.MutationIDs),
		Range:       r.Range.Clone(),
	}
	if r.Fields != nil {
		c.Fields = make(map[string]any, len(r.Fields))
		for k, v := range r.Fields {
			c.Fields[k] = v
		}
	}
	if r.Links != nil {
		c.Links = make(map[string]DataID, len(r.Links))
		for k, v := range r.Links {
			c.Links[k] = v
		}
	}
	if r.LinkLists != nil {
		c.LinkLists = make(map[string][]DataID, len(r.LinkLists))
		for k, v := range r.LinkLists {
			c.LinkLists[k] = slices.Clone(v)
		}
	}
	return c
}

func (r *Record) Field(key string) (any, bool) {
	v, ok := r.Fields[key]
	return v, ok
}

func (r *Record) setField(key string, value any) {
	delete(r.Links, key)
	delete(r.LinkLists, key)
	if r.Fields == nil {
		r.Fields = make(map[string]any)
	}
	r.Fields[key] = value
}

func (r *Record) setLink(key string, id DataID) {
	delete(r.Fields, key)
	delete(r.LinkLists, key)
	if r.Links == nil {
		r.Links = make(map[string]DataID)
	}
	r.Links[key] = id
}

func (r *Record) setLinkList(key string, ids []DataID) {
	delete(r.Fields, key)
	delete(r.Links, key)
	if r.LinkLists == nil {
		r.LinkLists = make(map[string][]DataID)
	}
	r.LinkLists[key] = ids
}

func (r *Record) deleteKey(key string) {
	delete(r.Fields, key)
	delete(r.Links, key)
	delete(r.LinkLists, key)
}

func (r *Record) hasKey(key string) bool {
	if _, ok := r.Fields[key]; ok {
		return true
	}
	if _, ok := r.Links[key]; ok {
		return true
	}
	_, ok := r.LinkLists[key]
	return ok
}

func (r *Record) addMutationID(id ClientMutationID) {
	if !slices.Contains(r.MutationIDs, id) {
		r.MutationIDs = append(r.MutationIDs, id)
	}
}

// overlay applies the fields of delta on top of a copy of r.
func (r *Record) overlay(delta *Record) *Record {
	out := r.Clone()
	if delta.Typename != "" {
		out.Typename = delta.Typename
	}
	if out.Path == nil {
		out.Path = delta.Path
	}
	for k, v := range delta.Fields {
		out.setField(k, v)
	}
	for k, v := range delta.Links {
		out.setLink(k, v)
	}
	for k, v := range delta.LinkLists {
		out.setLinkList(k, slices.Clone(v))
	}
	if delta.Range != nil {
		out.Range = delta.Range.Clone()
	}
	out.MutationIDs = slices.Clone(delta.MutationIDs)
	return out
}

// RecordMap maps ids to records. A missing key is an unknown record, a key
// mapped to nil is a record known not to exist.
type RecordMap map[DataID]*Record

func stateOf(r *Record) RecordState {
	if r == nil {
		return Nonexistent
	}
	return Existent
}

// PageInfo is the pagination state of a connection.
type PageInfo struct {
	HasNextPage     bool   `msgpack:"n" json:"hasNextPage"`
	HasPreviousPage bool   `msgpack:"p" json:"hasPreviousPage"`
	StartCursor     string `msgpack:"s,omitempty" json:"startCursor,omitempty"`
	EndCursor       string `msgpack:"e,omitempty" json:"endCursor,omitempty"`
}

type RangeEdge struct {
	EdgeID DataID `msgpack:"e" json:"edgeID"`
	NodeID DataID `msgpack:"n" json:"nodeID"`
	Cursor string `msgpack:"c,omitempty" json:"cursor,omitempty"`
}

// Range holds the fetched edges of a connection record in order.
type Range struct {
	FilterCalls string      `msgpack:"fc,omitempty" json:"filterCalls,omitempty"`
	Edges       []RangeEdge `msgpack:"e" json:"edges"`
	PageInfo    PageInfo    `msgpack:"pi" json:"pageInfo"`

	positions map[DataID]int
}

func (rng *Range) Clone() *Range {
	if rng == nil {
		return nil
	}
	c := &Range{
		FilterCalls: rng.FilterCalls,
		Edges:       slices.Clone(rng.Edges),
		PageInfo:    rng.PageInfo,
	}
	c.rehydrate()
	return c
}

// rehydrate rebuilds the edge position index, which is never serialized.
func (rng *Range) rehydrate() {
	rng.positions = make(map[DataID]int, len(rng.Edges))
	for i, e := range rng.Edges {
		rng.positions[e.EdgeID] = i
	}
}

// addEdges appends edges not seen before and replaces known ones in place.
// Returns whether anything changed.
func (rng *Range) addEdges(edges []RangeEdge) bool {
	if rng.positions == nil {
		rng.rehydrate()
	}
	var changed bool
	for _, e := range edges {
		if i, ok := rng.positions[e.EdgeID]; ok {
			if rng.Edges[i] != e {
				rng.Edges[i] = e
				changed = true
			}
			continue
		}
		rng.positions[e.EdgeID] = len(rng.Edges)
		rng.Edges = append(rng.Edges, e)
		changed = true
	}
	return changed
}

func (rng *Range) hasEdge(id DataID) bool {
	if rng.positions == nil {
		rng.rehydrate()
	}
	_, ok := rng.positions[id]
	return ok
}

// removeNode drops every edge pointing at nodeID. Returns whether any did.
func (rng *Range) removeNode(nodeID DataID) bool {
	n := len(rng.Edges)
	rng.Edges = slices.DeleteFunc(rng.Edges, func(e RangeEdge) bool {
		return e.NodeID == nodeID
	})
	if len(rng.Edges) == n {
		return false
	}
	rng.rehydrate()
	return true
}
