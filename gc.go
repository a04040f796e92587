package gqlstore

import (
	"log/slog"
)

// GCScheduler decides when collection work runs. It must call step, later
// and repeatedly, until step returns false.
type GCScheduler func(step func() (more bool))

const DefaultGCStepSize = 100

type gcHold struct {
	sel   Selector
	count int
}

// garbageCollector evicts base and cached records that are not reachable
// from any retained selector. Collection is incremental: the mark is redone
// whenever a write pass or a new hold happened since it was taken, so a step
// never evicts a record that became reachable in the meantime. Records shadowed by
// optimistic data are never evicted.
type garbageCollector struct {
	arena     *recordArena
	scheduler GCScheduler
	stepSize  int
	logger    *slog.Logger
	verbose   bool

	registered map[DataID]struct{}
	holds      map[string]*gcHold

	epoch      uint64
	collecting bool
	markEpoch  uint64
	marked     map[DataID]struct{}
	candidates []DataID
	evicted    int
}

func newGarbageCollector(arena *recordArena, scheduler GCScheduler, stepSize int, logger *slog.Logger, verbose bool) *garbageCollector {
	if stepSize <= 0 {
		stepSize = DefaultGCStepSize
	}
	return &garbageCollector{
		arena:      arena,
		scheduler:  scheduler,
		stepSize:   stepSize,
		logger:     logger,
		verbose:    verbose,
		registered: make(map[DataID]struct{}),
		holds:      make(map[string]*gcHold),
	}
}

func (gc *garbageCollector) register(id DataID) {
	gc.registered[id] = struct{}{}
}

func (gc *garbageCollector) isRegistered(id DataID) bool {
	_, ok := gc.registered[id]
	return ok
}

// touch invalidates the current mark.
func (gc *garbageCollector) touch() {
	gc.epoch++
}

// acquireHold keeps everything reachable from sel alive until the returned
// hold is disposed. A selector can be held many times.
func (gc *garbageCollector) acquireHold(sel Selector) Disposable {
	key := sel.Key()
	h := gc.holds[key]
	if h == nil {
		h = &gcHold{sel: sel}
		gc.holds[key] = h
	}
	h.count++
	gc.touch()
	return onceDisposable(func() {
		gc.releaseHold(key)
	})
}

func (gc *garbageCollector) releaseHold(key string) {
	h := gc.holds[key]
	if h == nil {
		return
	}
	if h.count > 1 {
		h.count--
		return
	}
	delete(gc.holds, key)
	gc.touch()
}

func (gc *garbageCollector) isHeld(sel Selector) bool {
	h := gc.holds[sel.Key()]
	return h != nil && h.count > 0
}

// collect starts a sweep unless one is already running.
func (gc *garbageCollector) collect() {
	if gc.collecting {
		return
	}
	gc.collecting = true
	gc.markEpoch = gc.epoch - 1
	gc.candidates = nil
	gc.scheduler(gc.step)
}

func (gc *garbageCollector) step() bool {
	if !gc.collecting {
		return false
	}
	if gc.markEpoch != gc.epoch {
		gc.mark()
	}

	var n int
	for n < gc.stepSize && len(gc.candidates) > 0 {
		id := gc.candidates[0]
		gc.candidates = gc.candidates[1:]
		if _, ok := gc.marked[id]; ok || !gc.isRegistered(id) {
			continue
		}
		if _, ok := gc.arena.queued[id]; ok {
			continue
		}
		delete(gc.arena.base, id)
		delete(gc.arena.cached, id)
		delete(gc.registered, id)
		gc.evicted++
		n++
	}

	if len(gc.candidates) > 0 {
		return true
	}
	gc.collecting = false
	gc.marked = nil
	if gc.verbose {
		gc.logger.Debug("gqlstore: collection finished", "evicted", gc.evicted, "registered", len(gc.registered))
	}
	return false
}

// mark reads every held selector over the queued view; whatever a read
// touches is reachable.
func (gc *garbageCollector) mark() {
	gc.markEpoch = gc.epoch
	gc.marked = make(map[DataID]struct{})
	view := gc.arena.store(layerQueued)
	for _, h := range gc.holds {
		snap := readSelector(view, h.sel)
		for id := range snap.SeenRecords {
			gc.marked[id] = struct{}{}
		}
	}

	gc.candidates = gc.candidates[:0]
	for _, id := range sortedKeys(gc.registered) {
		if _, ok := gc.marked[id]; !ok {
			gc.candidates = append(gc.candidates, id)
		}
	}
}
