package gqlstore

import (
	"log/slog"
	"slices"
)

type subscription struct {
	seq      uint64
	ids      []DataID
	callback func()
	disposed bool
}

// changeEmitter notifies subscribers of changed records. Broadcasts made in
// the same turn are coalesced into one flush, and a subscriber is called at
// most once per flush however many of its ids changed.
type changeEmitter struct {
	exec   Executor
	logger *slog.Logger

	nextSeq   uint64
	byID      map[DataID]map[*subscription]struct{}
	pending   map[DataID]struct{}
	scheduled bool
}

func newChangeEmitter(exec Executor, logger *slog.Logger) *changeEmitter {
	return &changeEmitter{
		exec:    exec,
		logger:  logger,
		byID:    make(map[DataID]map[*subscription]struct{}),
		pending: make(map[DataID]struct{}),
	}
}

func (e *changeEmitter) subscribe(ids []DataID, callback func()) Disposable {
	e.nextSeq++
	sub := &subscription{seq: e.nextSeq, ids: slices.Clone(ids), callback: callback}
	for _, id := range sub.ids {
		subs := e.byID[id]
		if subs == nil {
			subs = make(map[*subscription]struct{})
			e.byID[id] = subs
		}
		subs[sub] = struct{}{}
	}
	return onceDisposable(func() {
		sub.disposed = true
		for _, id := range sub.ids {
			subs := e.byID[id]
			delete(subs, sub)
			if len(subs) == 0 {
				delete(e.byID, id)
			}
		}
	})
}

func (e *changeEmitter) subscriberCount() int {
	seen := make(map[*subscription]struct{})
	for _, subs := range e.byID {
		for sub := range subs {
			seen[sub] = struct{}{}
		}
	}
	return len(seen)
}

func (e *changeEmitter) broadcast(ids []DataID) {
	if len(ids) == 0 {
		return
	}
	for _, id := range ids {
		e.pending[id] = struct{}{}
	}
	if e.scheduled {
		return
	}
	e.scheduled = true
	e.exec.Post(e.flush)
}

func (e *changeEmitter) flush() {
	e.scheduled = false
	pending := e.pending
	e.pending = make(map[DataID]struct{})

	var subs []*subscription
	seen := make(map[*subscription]struct{})
	for id := range pending {
		for sub := range e.byID[id] {
			if _, ok := seen[sub]; ok {
				continue
			}
			seen[sub] = struct{}{}
			subs = append(subs, sub)
		}
	}
	slices.SortFunc(subs, func(a, b *subscription) int {
		return compareUint64(a.seq, b.seq)
	})

	for _, sub := range subs {
		if sub.disposed {
			continue
		}
		if err := safelyCall(sub.callback); err != nil {
			e.logger.Error("gqlstore: subscriber failed", "err", err)
		}
	}
}
