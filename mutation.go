package gqlstore

import (
	"fmt"
	"maps"
	"sync"
)

type ClientMutationID string

type TransactionStatus int

const (
	StatusCreated TransactionStatus = iota
	StatusUncommitted
	StatusCommitQueued
	StatusCommitting
	StatusCommitFailed
	StatusCollisionCommitFailed
	StatusCommitted
	StatusRolledBack
)

func (s TransactionStatus) String() string {
	switch s {
	case StatusCreated:
		return "CREATED"
	case StatusUncommitted:
		return "UNCOMMITTED"
	case StatusCommitQueued:
		return "COMMIT_QUEUED"
	case StatusCommitting:
		return "COMMITTING"
	case StatusCommitFailed:
		return "COMMIT_FAILED"
	case StatusCollisionCommitFailed:
		return "COLLISION_COMMIT_FAILED"
	case StatusCommitted:
		return "COMMITTED"
	case StatusRolledBack:
		return "ROLLED_BACK"
	default:
		return fmt.Sprintf("invalid status %d", int(s))
	}
}

// MutationQuery is everything needed to send a mutation and to normalize its
// response: the payload under CallName is read with Fields.
type MutationQuery struct {
	CallName  string
	Input     map[string]any
	Fields    []*Field
	Variables map[string]any
}

type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// MutationConfig adjusts how a mutation payload is applied to the store.
type MutationConfig interface {
	mutationConfig()
}

// NodeDeleteConfig deletes the records whose ids the payload lists under
// DeletedIDFieldName (a string or a list of strings).
type NodeDeleteConfig struct {
	DeletedIDFieldName string
}

func (NodeDeleteConfig) mutationConfig() {}

// FailureFunc is called when a commit fails. Calling preventAutoRollback
// keeps the transaction and its optimistic data around for a recommit.
type FailureFunc func(tx *Transaction, preventAutoRollback func())

// PendingTransaction is the queue's view of one mutation instance.
type PendingTransaction interface {
	ID() ClientMutationID
	CallName() string
	CollisionKey() string
	Query() *MutationQuery
	OptimisticResponse() Payload
	OptimisticQuery() *MutationQuery
	Files() map[string]File
	Configs() []MutationConfig
	OnSuccess(response Payload)
	OnFailure(tx *Transaction, preventAutoRollback func())
}

// Mutation describes a mutation by its call, input and the fields to refetch
// from the payload. The query is built on first use, with the transaction's
// client mutation id added to the input.
type Mutation struct {
	CallName     string
	CollisionKey string
	Input        map[string]any
	Fields       []*Field
	Variables    map[string]any

	// OptimisticResponse is the payload expected under CallName. It is read
	// with OptimisticFields, or with Fields when OptimisticFields is nil.
	OptimisticResponse Payload
	OptimisticFields   []*Field

	Files   map[string]File
	Configs []MutationConfig

	OnSuccess func(response Payload)
	OnFailure FailureFunc
}

type mutationTransaction struct {
	id ClientMutationID
	m  *Mutation

	queryOnce sync.Once
	query     *MutationQuery
}

func newMutationTransaction(id ClientMutationID, m *Mutation) *mutationTransaction {
	return &mutationTransaction{id: id, m: m}
}

func (t *mutationTransaction) ID() ClientMutationID        { return t.id }
func (t *mutationTransaction) CallName() string            { return t.m.CallName }
func (t *mutationTransaction) CollisionKey() string        { return t.m.CollisionKey }
func (t *mutationTransaction) Files() map[string]File      { return t.m.Files }
func (t *mutationTransaction) Configs() []MutationConfig   { return t.m.Configs }
func (t *mutationTransaction) OptimisticResponse() Payload { return t.m.OptimisticResponse }

func (t *mutationTransaction) Query() *MutationQuery {
	t.queryOnce.Do(func() {
		input := maps.Clone(t.m.Input)
		if input == nil {
			input = make(map[string]any)
		}
		input["clientMutationId"] = string(t.id)
		t.query = &MutationQuery{
			CallName:  t.m.CallName,
			Input:     input,
			Fields:    t.m.Fields,
			Variables: t.m.Variables,
		}
	})
	return t.query
}

func (t *mutationTransaction) OptimisticQuery() *MutationQuery {
	if t.m.OptimisticResponse == nil {
		return nil
	}
	if t.m.OptimisticFields == nil {
		return t.Query()
	}
	return &MutationQuery{
		CallName:  t.m.CallName,
		Fields:    t.m.OptimisticFields,
		Variables: t.m.Variables,
	}
}

func (t *mutationTransaction) OnSuccess(response Payload) {
	if t.m.OnSuccess != nil {
		t.m.OnSuccess(response)
	}
}

func (t *mutationTransaction) OnFailure(tx *Transaction, preventAutoRollback func()) {
	if t.m.OnFailure != nil {
		t.m.OnFailure(tx, preventAutoRollback)
	}
}

// ProgrammaticMutation hands over a ready-made query, used by callers that
// build their own mutation documents.
type ProgrammaticMutation struct {
	Query              *MutationQuery
	CollisionKey       string
	OptimisticResponse Payload
	OptimisticQuery    *MutationQuery
	Files              map[string]File
	Configs            []MutationConfig
	OnSuccess          func(response Payload)
	OnFailure          FailureFunc
}

type programmaticTransaction struct {
	id ClientMutationID
	pm *ProgrammaticMutation
}

func (t *programmaticTransaction) ID() ClientMutationID        { return t.id }
func (t *programmaticTransaction) CallName() string            { return t.pm.Query.CallName }
func (t *programmaticTransaction) CollisionKey() string        { return t.pm.CollisionKey }
func (t *programmaticTransaction) Query() *MutationQuery       { return t.pm.Query }
func (t *programmaticTransaction) Files() map[string]File      { return t.pm.Files }
func (t *programmaticTransaction) Configs() []MutationConfig   { return t.pm.Configs }
func (t *programmaticTransaction) OptimisticResponse() Payload { return t.pm.OptimisticResponse }

func (t *programmaticTransaction) OptimisticQuery() *MutationQuery {
	if t.pm.OptimisticQuery != nil {
		return t.pm.OptimisticQuery
	}
	return t.pm.Query
}

func (t *programmaticTransaction) OnSuccess(response Payload) {
	if t.pm.OnSuccess != nil {
		t.pm.OnSuccess(response)
	}
}

func (t *programmaticTransaction) OnFailure(tx *Transaction, preventAutoRollback func()) {
	if t.pm.OnFailure != nil {
		t.pm.OnFailure(tx, preventAutoRollback)
	}
}

// NetworkLayer sends mutations. Implementations complete the request by
// calling Resolve or Reject, from any goroutine.
type NetworkLayer interface {
	SendMutation(req *MutationRequest)
}

// MutationRequest is a mutation on its way to the server together with its
// completion. Only the first Resolve or Reject counts.
type MutationRequest struct {
	query *MutationQuery
	files map[string]File

	once      sync.Once
	exec      Executor
	onSuccess func(Payload)
	onFailure func(error)
}

func (req *MutationRequest) Query() *MutationQuery  { return req.query }
func (req *MutationRequest) Files() map[string]File { return req.files }
func (req *MutationRequest) DebugName() string      { return req.query.CallName }

// Resolve delivers the server response, which holds the mutation payload
// under the call name.
func (req *MutationRequest) Resolve(response Payload) {
	req.once.Do(func() {
		req.exec.Post(func() { req.onSuccess(response) })
	})
}

func (req *MutationRequest) Reject(err error) {
	if err == nil {
		panic(invariantf("MutationRequest.Reject: nil error"))
	}
	req.once.Do(func() {
		req.exec.Post(func() { req.onFailure(err) })
	})
}

// Transaction is the caller's handle on a pending mutation.
type Transaction struct {
	queue *MutationQueue
	entry *queuedTransaction
}

func (tx *Transaction) ID() ClientMutationID {
	return tx.entry.tx.ID()
}

func (tx *Transaction) Status() TransactionStatus {
	return tx.entry.status
}

// Error is the network error of the last failed commit. It is nil for
// StatusCollisionCommitFailed, where a queued sibling failed instead.
func (tx *Transaction) Error() error {
	return tx.entry.err
}

func (tx *Transaction) ApplyOptimistic() *Transaction {
	tx.queue.ApplyOptimistic(tx.ID())
	return tx
}

func (tx *Transaction) Commit() {
	tx.queue.Commit(tx.ID())
}

// Recommit retries a transaction whose commit failed, either on its own or
// because a collision sibling failed.
func (tx *Transaction) Recommit() {
	tx.queue.Recommit(tx.ID())
}

func (tx *Transaction) Rollback() {
	tx.queue.Rollback(tx.ID())
}
