package gqlstore

import (
	"slices"
)

type queuedTransaction struct {
	tx     PendingTransaction
	status TransactionStatus
	err    error

	// applied is set once the optimistic update was requested; only those
	// are replayed on refresh.
	applied bool
}

// MutationQueue tracks pending transactions, serializes commits that share a
// collision key and keeps the queued layer equal to the server data plus the
// optimistic updates of the transactions still pending.
//
// At most the head of a collision queue is ever committing. A commit failure
// with a network error fails every other member of that collision queue with
// StatusCollisionCommitFailed and a nil error, since later mutations may have
// been built assuming the failed one would succeed.
type MutationQueue struct {
	env *Environment

	pending         map[ClientMutationID]*queuedTransaction
	order           []*queuedTransaction
	collisionQueues map[string][]*queuedTransaction

	refreshScheduled bool
}

func newMutationQueue(env *Environment) *MutationQueue {
	return &MutationQueue{
		env:             env,
		pending:         make(map[ClientMutationID]*queuedTransaction),
		collisionQueues: make(map[string][]*queuedTransaction),
	}
}

func (q *MutationQueue) CreateTransaction(m *Mutation) *Transaction {
	return q.CreateTransactionWithPendingTransaction(func(id ClientMutationID) PendingTransaction {
		return newMutationTransaction(id, m)
	})
}

// CreateTransactionWithPendingTransaction allocates an identity and wraps the
// transaction built for it.
func (q *MutationQueue) CreateTransactionWithPendingTransaction(build func(id ClientMutationID) PendingTransaction) *Transaction {
	id := q.env.ids.NextID()
	if _, ok := q.pending[id]; ok {
		panic(invariantf("MutationQueue: id generator reused %s", id))
	}
	tx := build(id)
	if tx.ID() != id {
		panic(invariantf("MutationQueue: transaction built for %s reports id %s", id, tx.ID()))
	}
	entry := &queuedTransaction{tx: tx, status: StatusCreated}
	q.pending[id] = entry
	q.order = append(q.order, entry)
	return &Transaction{queue: q, entry: entry}
}

func (q *MutationQueue) Status(id ClientMutationID) TransactionStatus {
	return q.get(id).status
}

func (q *MutationQueue) Error(id ClientMutationID) error {
	return q.get(id).err
}

func (q *MutationQueue) PendingCount() int {
	return len(q.pending)
}

func (q *MutationQueue) ApplyOptimistic(id ClientMutationID) {
	entry := q.get(id)
	q.requireStatus(entry, "ApplyOptimistic", StatusCreated)
	entry.status = StatusUncommitted
	entry.err = nil
	entry.applied = true

	tracker := NewChangeTracker()
	q.handleOptimisticUpdate(entry, tracker)
	q.env.handleChangeSet(tracker.ChangeSet())
}

// Commit sends the transaction, or queues it behind the in-flight member of
// its collision queue.
func (q *MutationQueue) Commit(id ClientMutationID) {
	entry := q.get(id)
	q.requireStatus(entry, "Commit", StatusCreated, StatusUncommitted)
	q.commit(entry)
}

// Recommit commits a failed transaction again.
func (q *MutationQueue) Recommit(id ClientMutationID) {
	entry := q.get(id)
	q.requireStatus(entry, "Recommit", StatusCommitFailed, StatusCollisionCommitFailed)
	q.commit(entry)
}

func (q *MutationQueue) commit(entry *queuedTransaction) {
	key := entry.tx.CollisionKey()
	if key != "" {
		if cq, ok := q.collisionQueues[key]; ok {
			q.collisionQueues[key] = append(cq, entry)
			entry.status = StatusCommitQueued
			entry.err = nil
			return
		}
		q.collisionQueues[key] = []*queuedTransaction{entry}
	}
	q.handleCommit(entry)
}

// Rollback discards the transaction and its optimistic data. A response that
// arrives later for it is ignored.
func (q *MutationQueue) Rollback(id ClientMutationID) {
	entry := q.get(id)
	q.requireStatus(entry, "Rollback", StatusUncommitted, StatusCommitQueued, StatusCommitting, StatusCommitFailed, StatusCollisionCommitFailed)
	q.handleRollback(entry)
}

func (q *MutationQueue) requireStatus(entry *queuedTransaction, op string, allowed ...TransactionStatus) {
	if slices.Contains(allowed, entry.status) {
		return
	}
	panic(invariantf("MutationQueue.%s: transaction %s has status %v, wanted one of %v", op, entry.tx.ID(), entry.status, allowed))
}

func (q *MutationQueue) get(id ClientMutationID) *queuedTransaction {
	entry := q.pending[id]
	if entry == nil {
		panic(invariantf("MutationQueue: %q is not a valid pending transaction ID", id))
	}
	return entry
}

func (q *MutationQueue) isPending(entry *queuedTransaction) bool {
	return q.pending[entry.tx.ID()] == entry
}

func (q *MutationQueue) handleOptimisticUpdate(entry *queuedTransaction, tracker *ChangeTracker) {
	resp := entry.tx.OptimisticResponse()
	query := entry.tx.OptimisticQuery()
	if resp == nil || query == nil {
		return
	}
	w := newOptimisticWriter(q.env.arena, entry.tx.ID(), tracker)
	q.env.applyMutationPayload(query, resp, entry.tx.Configs(), w)
}

func (q *MutationQueue) handleCommit(entry *queuedTransaction) {
	entry.status = StatusCommitting
	entry.err = nil

	tx := entry.tx
	req := &MutationRequest{
		query: tx.Query(),
		files: tx.Files(),
		exec:  q.env.exec,
	}
	req.onSuccess = func(response Payload) {
		q.handleCommitSuccess(entry, response)
	}
	req.onFailure = func(err error) {
		q.handleCommitFailure(entry, commitError(err, tx))
	}

	if q.env.verbose {
		q.env.logger.Debug("gqlstore: committing", "call", tx.CallName(), "id", tx.ID())
	}
	q.env.network.SendMutation(req)
}

func (q *MutationQueue) handleCommitSuccess(entry *queuedTransaction, response Payload) {
	if !q.isPending(entry) {
		q.env.logger.Debug("gqlstore: ignoring response for a transaction no longer pending", "id", entry.tx.ID())
		return
	}
	tx := entry.tx
	q.advanceCollisionQueue(entry)
	q.clearPending(entry)
	entry.status = StatusCommitted

	tracker := NewChangeTracker()
	q.refreshQueuedData(tracker)

	data, _ := response[tx.CallName()].(Payload)
	if data != nil {
		w := newRecordWriter(q.env.arena, layerBase, q.env.cacheWriter(writeMutation), tracker)
		q.env.applyMutationPayload(tx.Query(), data, tx.Configs(), w)
	}
	q.env.handleChangeSet(tracker.ChangeSet())

	if err := safelyCall(func() { tx.OnSuccess(response) }); err != nil {
		q.env.logger.Error("gqlstore: mutation success callback failed", "call", tx.CallName(), "err", err)
	}
}

// handleCommitFailure moves the transaction into a failed state. A nil err
// means the failure was propagated from a collision sibling.
func (q *MutationQueue) handleCommitFailure(entry *queuedTransaction, err error) {
	if !q.isPending(entry) {
		q.env.logger.Debug("gqlstore: ignoring failure for a transaction no longer pending", "id", entry.tx.ID())
		return
	}
	if err != nil {
		entry.status = StatusCommitFailed
	} else {
		entry.status = StatusCollisionCommitFailed
	}
	entry.err = err

	// The failed head leaves its collision queue before OnFailure runs, so a
	// recommit from the callback starts a fresh queue.
	var siblings []*queuedTransaction
	if err != nil {
		siblings = q.detachCollisionQueue(entry)
	}

	tx := entry.tx
	shouldRollback := true
	handle := &Transaction{queue: q, entry: entry}
	cbErr := safelyCall(func() {
		tx.OnFailure(handle, func() { shouldRollback = false })
	})
	if cbErr != nil {
		q.env.logger.Error("gqlstore: mutation failure callback failed", "call", tx.CallName(), "err", cbErr)
	}

	for _, sibling := range siblings {
		q.handleCommitFailure(sibling, nil)
	}
	// OnFailure may have rolled it back already.
	if shouldRollback && q.isPending(entry) {
		q.handleRollback(entry)
	}
	q.batchRefreshQueuedData()
}

func (q *MutationQueue) handleRollback(entry *queuedTransaction) {
	q.popFromCollisionQueue(entry)
	q.clearPending(entry)
	entry.status = StatusRolledBack
	q.batchRefreshQueuedData()
}

func (q *MutationQueue) clearPending(entry *queuedTransaction) {
	delete(q.pending, entry.tx.ID())
	q.order = slices.DeleteFunc(q.order, func(e *queuedTransaction) bool {
		return e == entry
	})
}

// popFromCollisionQueue removes entry from its collision queue. If entry was
// the committing head, the next member starts committing.
func (q *MutationQueue) popFromCollisionQueue(entry *queuedTransaction) {
	key := entry.tx.CollisionKey()
	if key == "" {
		return
	}
	cq, ok := q.collisionQueues[key]
	if !ok {
		return
	}
	idx := slices.Index(cq, entry)
	if idx < 0 {
		return
	}
	cq = slices.Delete(cq, idx, idx+1)
	if len(cq) == 0 {
		delete(q.collisionQueues, key)
		return
	}
	q.collisionQueues[key] = cq
	if idx == 0 && entry.status == StatusCommitting {
		q.handleCommit(cq[0])
	}
}

func (q *MutationQueue) advanceCollisionQueue(entry *queuedTransaction) {
	key := entry.tx.CollisionKey()
	if key == "" {
		return
	}
	cq := q.collisionQueues[key]
	if len(cq) == 0 || cq[0] != entry {
		panic(invariantf("MutationQueue: committed transaction %s is not the head of collision queue %q", entry.tx.ID(), key))
	}
	cq = cq[1:]
	if len(cq) == 0 {
		delete(q.collisionQueues, key)
		return
	}
	q.collisionQueues[key] = cq
	q.handleCommit(cq[0])
}

// detachCollisionQueue deletes the collision queue of failed and returns its
// other members.
func (q *MutationQueue) detachCollisionQueue(failed *queuedTransaction) []*queuedTransaction {
	key := failed.tx.CollisionKey()
	if key == "" {
		return nil
	}
	cq := q.collisionQueues[key]
	delete(q.collisionQueues, key)
	return slices.DeleteFunc(cq, func(e *queuedTransaction) bool {
		return e == failed
	})
}

// batchRefreshQueuedData coalesces refresh requests made during one turn
// into a single clear-and-replay.
func (q *MutationQueue) batchRefreshQueuedData() {
	if q.refreshScheduled {
		return
	}
	q.refreshScheduled = true
	q.env.exec.Post(func() {
		q.refreshScheduled = false
		tracker := NewChangeTracker()
		q.refreshQueuedData(tracker)
		q.env.handleChangeSet(tracker.ChangeSet())
	})
}

// refreshQueuedData clears the queued layer and replays the applied
// optimistic updates of pending transactions in creation order.
func (q *MutationQueue) refreshQueuedData(tracker *ChangeTracker) {
	for _, id := range q.env.arena.clearQueued() {
		tracker.UpdateID(id)
	}
	for _, entry := range q.order {
		if !entry.applied {
			continue
		}
		q.handleOptimisticUpdate(entry, tracker)
	}
	if q.env.verbose {
		q.env.logger.Debug("gqlstore: refreshed queued data", "pending", len(q.order))
	}
}

func (q *MutationQueue) collisionQueueLen(key string) int {
	return len(q.collisionQueues[key])
}
