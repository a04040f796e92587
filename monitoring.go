package gqlstore

type Stats struct {
	CachedRecords int
	BaseRecords   int
	QueuedRecords int

	RootCalls       int
	CachedRootCalls int

	PendingTransactions int
	Subscriptions       int

	GCRegistered int
	GCHolds      int
}

func (s *Stats) TotalRecords() int {
	return s.CachedRecords + s.BaseRecords + s.QueuedRecords
}

func (env *Environment) Stats() Stats {
	a := env.arena
	s := Stats{
		CachedRecords:       len(a.cached),
		BaseRecords:         len(a.base),
		QueuedRecords:       len(a.queued),
		RootCalls:           a.rootCalls.count(),
		CachedRootCalls:     a.cachedRootCalls.count(),
		PendingTransactions: env.queue.PendingCount(),
		Subscriptions:       env.emitter.subscriberCount(),
	}
	if env.gc != nil {
		s.GCRegistered = len(env.gc.registered)
		for _, h := range env.gc.holds {
			s.GCHolds += h.count
		}
	}
	return s
}
