package gqlstore

import (
	"log/slog"
	"reflect"
)

// Environment owns a record arena and coordinates everything that writes
// to it: query responses, the mutation queue, cache restoration and garbage
// collection. It is not safe for concurrent use; all calls and callbacks
// happen on the goroutine running its Executor.
type Environment struct {
	arena *recordArena

	logger       *slog.Logger
	verbose      bool
	network      NetworkLayer
	cacheManager CacheManager
	ids          IDGenerator
	exec         Executor
	loop         *TaskLoop
	gcStepSize   int

	emitter *changeEmitter
	queue   *MutationQueue
	gc      *garbageCollector
}

type Options struct {
	Logger  *slog.Logger
	Verbose bool

	Network      NetworkLayer
	CacheManager CacheManager

	// IDGenerator allocates client mutation ids; defaults to ULIDs.
	IDGenerator IDGenerator

	// Executor runs deferred work. Defaults to a TaskLoop driven by
	// Environment.RunPending.
	Executor Executor

	GCStepSize int
}

func Open(opt Options) *Environment {
	return openArena(newRecordArena(), opt)
}

func openArena(arena *recordArena, o Options) *Environment {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.IDGenerator == nil {
		o.IDGenerator = NewULIDGenerator()
	}
	if o.GCStepSize == 0 {
		o.GCStepSize = DefaultGCStepSize
	}
	env := &Environment{
		arena:        arena,
		logger:       o.Logger,
		verbose:      o.Verbose,
		network:      o.Network,
		cacheManager: o.CacheManager,
		ids:          o.IDGenerator,
		exec:         o.Executor,
		gcStepSize:   o.GCStepSize,
	}
	if env.exec == nil {
		env.loop = NewTaskLoop()
		env.exec = env.loop
	}
	if env.network == nil {
		env.network = unavailableNetwork{}
	}
	env.emitter = newChangeEmitter(env.exec, env.logger)
	env.queue = newMutationQueue(env)
	return env
}

// RunPending drains the default task loop. It panics when the environment
// was opened with a custom Executor.
func (env *Environment) RunPending() int {
	if env.loop == nil {
		panic(invariantf("Environment.RunPending: environment uses a custom executor"))
	}
	return env.loop.RunPending()
}

// RecordStore is the queued view: server data with optimistic updates on top.
func (env *Environment) RecordStore() *RecordStore {
	return env.arena.store(layerQueued)
}

func (env *Environment) BaseStore() *RecordStore {
	return env.arena.store(layerBase)
}

func (env *Environment) CachedStore() *RecordStore {
	return env.arena.store(layerCached)
}

func (env *Environment) MutationQueue() *MutationQueue {
	return env.queue
}

func (env *Environment) Lookup(sel Selector) *Snapshot {
	return readSelector(env.RecordStore(), sel)
}

// Subscribe calls callback with a fresh snapshot whenever a record seen by
// the current snapshot changes and the data read differs from before.
func (env *Environment) Subscribe(snap *Snapshot, callback func(*Snapshot)) Disposable {
	s := &snapshotSubscription{env: env, snap: snap, callback: callback}
	s.listen()
	return onceDisposable(s.dispose)
}

type snapshotSubscription struct {
	env      *Environment
	snap     *Snapshot
	callback func(*Snapshot)
	inner    Disposable
	disposed bool
}

func (s *snapshotSubscription) listen() {
	s.inner = s.env.emitter.subscribe(s.snap.seenIDs(), s.update)
}

func (s *snapshotSubscription) update() {
	if s.disposed {
		return
	}
	next := s.env.Lookup(s.snap.Selector)
	prev := s.snap
	s.inner.Dispose()
	s.snap = next
	s.listen()
	if next.IsMissingData == prev.IsMissingData && reflect.DeepEqual(next.Data, prev.Data) {
		return
	}
	s.callback(next)
}

func (s *snapshotSubscription) dispose() {
	s.disposed = true
	s.inner.Dispose()
}

// CommitPayload writes a query response into the base layer, persisting it
// through the cache's query writer.
func (env *Environment) CommitPayload(sel Selector, payload Payload) ChangeSet {
	tracker := NewChangeTracker()
	w := newRecordWriter(env.arena, layerBase, env.cacheWriter(writeQuery), tracker)
	newPayloadWriter(w, sel.Variables).writeRoot(sel.DataID, sel.Fields, payload)
	cs := tracker.ChangeSet()
	env.handleChangeSet(cs)
	return cs
}

func (env *Environment) CreateTransaction(m *Mutation) *Transaction {
	return env.queue.CreateTransaction(m)
}

func (env *Environment) CreateProgrammaticTransaction(pm *ProgrammaticMutation) *Transaction {
	if pm.Query == nil {
		panic(invariantf("Environment.CreateProgrammaticTransaction: nil query"))
	}
	return env.queue.CreateTransactionWithPendingTransaction(func(id ClientMutationID) PendingTransaction {
		return &programmaticTransaction{id: id, pm: pm}
	})
}

// ApplyUpdate creates a transaction and applies its optimistic update without
// committing it.
func (env *Environment) ApplyUpdate(m *Mutation) *Transaction {
	return env.CreateTransaction(m).ApplyOptimistic()
}

// CommitUpdate applies the optimistic update, if any, and commits.
func (env *Environment) CommitUpdate(m *Mutation) *Transaction {
	tx := env.ApplyUpdate(m)
	tx.Commit()
	return tx
}

// InitializeGarbageCollector enables collection. A nil scheduler runs steps
// as executor tasks. Records already in the base layer are never collected.
func (env *Environment) InitializeGarbageCollector(scheduler GCScheduler) {
	if env.gc != nil {
		panic(invariantf("Environment.InitializeGarbageCollector: already initialized"))
	}
	if n := len(env.arena.base); n > 0 {
		env.logger.Warn("gqlstore: garbage collector initialized with records already in the store, they will not be collected", "records", n)
	}
	if scheduler == nil {
		scheduler = env.postGCSteps
	}
	env.gc = newGarbageCollector(env.arena, scheduler, env.gcStepSize, env.logger, env.verbose)
}

func (env *Environment) postGCSteps(step func() bool) {
	var run func()
	run = func() {
		if step() {
			env.exec.Post(run)
		}
	}
	env.exec.Post(run)
}

// Retain keeps the records reachable from sel from being collected until
// disposed. Without a garbage collector it does nothing.
func (env *Environment) Retain(sel Selector) Disposable {
	if env.gc == nil {
		return noopDisposable
	}
	return env.gc.acquireHold(sel)
}

func (env *Environment) CollectGarbage() {
	if env.gc == nil {
		return
	}
	env.gc.collect()
}

func (env *Environment) handleChangeSet(cs ChangeSet) {
	if cs.IsEmpty() {
		return
	}
	created, updated := cs.CreatedIDs(), cs.UpdatedIDs()
	if env.gc != nil {
		for _, id := range created {
			env.gc.register(id)
		}
		for _, id := range updated {
			env.gc.register(id)
		}
		env.gc.touch()
	}
	if env.verbose {
		env.logger.Debug("gqlstore: changes", "created", len(created), "updated", len(updated))
	}
	env.emitter.broadcast(created)
	env.emitter.broadcast(updated)
}

// applyMutationPayload writes the payload of a mutation (real or optimistic)
// through w and applies the mutation configs.
func (env *Environment) applyMutationPayload(query *MutationQuery, data Payload, configs []MutationConfig, w *RecordWriter) {
	newPayloadWriter(w, query.Variables).writeMutationPayload(query.Fields, data)
	for _, cfg := range configs {
		switch cfg := cfg.(type) {
		case NodeDeleteConfig:
			env.deleteNodes(w, deletedIDs(data[cfg.DeletedIDFieldName]))
		case *NodeDeleteConfig:
			env.deleteNodes(w, deletedIDs(data[cfg.DeletedIDFieldName]))
		default:
			panic(invariantf("unsupported mutation config %T", cfg))
		}
	}
}

func (env *Environment) deleteNodes(w *RecordWriter, ids []DataID) {
	view := env.RecordStore()
	for _, id := range ids {
		for _, connID := range view.ConnectionIDsForRecord(id) {
			if w.RecordState(connID) == Existent {
				w.RemoveRangeNode(connID, id)
			}
		}
		w.DeleteRecord(id)
	}
}

func deletedIDs(v any) []DataID {
	switch v := v.(type) {
	case string:
		return []DataID{DataID(v)}
	case []string:
		ids := make([]DataID, len(v))
		for i, s := range v {
			ids[i] = DataID(s)
		}
		return ids
	case []any:
		ids := make([]DataID, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				ids = append(ids, DataID(s))
			}
		}
		return ids
	default:
		return nil
	}
}

type unavailableNetwork struct{}

func (unavailableNetwork) SendMutation(req *MutationRequest) {
	req.Reject(errNoNetwork)
}
