package gqlstore

import (
	"encoding/json"
	"fmt"
	"strings"
)

type DumpFlags uint64

const (
	DumpLayerHeaders = DumpFlags(1 << iota)
	DumpRecords
	DumpStats
	DumpRootCalls
	DumpPending

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)
)

var (
	dumpSep1 = strings.Repeat("=", 80)
	dumpSep2 = strings.Repeat("-", 60)
)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// Dump renders the store contents for debugging, one line per record.
func (env *Environment) Dump(f DumpFlags) string {
	var buf strings.Builder
	if f.Contains(DumpStats) {
		s := env.Stats()
		fmt.Fprintf(&buf, "stats: cached = %d, base = %d, queued = %d, root_calls = %d, cached_root_calls = %d, pending = %d, subscriptions = %d, gc_registered = %d, gc_holds = %d\n",
			s.CachedRecords, s.BaseRecords, s.QueuedRecords, s.RootCalls, s.CachedRootCalls, s.PendingTransactions, s.Subscriptions, s.GCRegistered, s.GCHolds)
	}
	for _, l := range []layer{layerCached, layerBase, layerQueued} {
		env.dumpLayer(&buf, f, l)
	}
	if f.Contains(DumpPending) && len(env.queue.order) > 0 {
		fmt.Fprintln(&buf, dumpSep1)
		fmt.Fprintf(&buf, "pending (%d)\n", len(env.queue.order))
		for i, entry := range env.queue.order {
			fmt.Fprintf(&buf, "pending.%d = %s %s %s", i+1, entry.tx.ID(), entry.tx.CallName(), entry.status)
			if key := entry.tx.CollisionKey(); key != "" {
				fmt.Fprintf(&buf, " collision=%s", key)
			}
			if entry.err != nil {
				fmt.Fprintf(&buf, " err=%v", entry.err)
			}
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

func (env *Environment) dumpLayer(w *strings.Builder, f DumpFlags, l layer) {
	recs := env.arena.records(l)
	if f.Contains(DumpLayerHeaders) {
		fmt.Fprintln(w, dumpSep1)
		fmt.Fprintf(w, "%s (%d records)\n", l, len(recs))
	}
	if f.Contains(DumpRootCalls) && l != layerQueued {
		calls := env.arena.rootCallsFor(l)
		if len(calls) > 0 {
			fmt.Fprintln(w, dumpSep2)
		}
		for _, key := range sortedKeys(calls) {
			for _, arg := range sortedKeys(calls[key]) {
				fmt.Fprintf(w, "%s.root %s(%s) => %s\n", l, key, arg, calls[key][arg])
			}
		}
	}
	if f.Contains(DumpRecords) {
		if f.Contains(DumpLayerHeaders) && len(recs) > 0 {
			fmt.Fprintln(w, dumpSep2)
		}
		for _, id := range sortedKeys(recs) {
			fmt.Fprintf(w, "%s = %s\n", rpad(fmt.Sprintf("%s.%s", l, id), 40, ' '), loggableRecord(recs[id]))
		}
	}
}

func loggableRecord(rec *Record) string {
	if rec == nil {
		return "<deleted>"
	}
	return string(must(json.Marshal(rec)))
}
