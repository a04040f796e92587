package gqlstore

import (
	"testing"
)

type manualScheduler struct {
	steps []func() bool
}

func (s *manualScheduler) schedule(step func() bool) {
	s.steps = append(s.steps, step)
}

// runAll runs scheduled steps to completion and returns how many ran.
func (s *manualScheduler) runAll() int {
	var n int
	for len(s.steps) > 0 {
		step := s.steps[0]
		s.steps = s.steps[1:]
		for {
			n++
			if !step() {
				break
			}
		}
	}
	return n
}

func setupGC(t *testing.T, stepSize int) (*testEnv, *manualScheduler) {
	env := setup(t, Options{GCStepSize: stepSize})
	sched := &manualScheduler{}
	env.InitializeGarbageCollector(sched.schedule)
	return env, sched
}

func TestGC_EvictsUnreachableRecords(t *testing.T) {
	env, sched := setupGC(t, 0)
	env.CommitPayload(nodeSelector("4"), userPayload("4", "Zuck"))
	env.CommitPayload(nodeSelector("5"), userPayload("5", "Chris"))
	hold := env.Retain(nodeSelector("4"))

	env.CollectGarbage()
	sched.runAll()

	s := env.BaseStore()
	deepEqual(t, s.RecordState("4"), Existent)
	deepEqual(t, s.RecordState(RootID), Existent)
	deepEqual(t, s.RecordState("5"), Unknown)
	deepEqual(t, env.gc.isRegistered("5"), false)

	hold.Dispose()
	hold.Dispose()
	env.CollectGarbage()
	sched.runAll()
	deepEqual(t, s.RecordState("4"), Unknown)
	deepEqual(t, s.RecordState(RootID), Unknown)
}

func TestGC_HoldsAreCounted(t *testing.T) {
	env, sched := setupGC(t, 0)
	env.CommitPayload(nodeSelector("4"), userPayload("4", "Zuck"))
	h1 := env.Retain(nodeSelector("4"))
	h2 := env.Retain(nodeSelector("4"))
	h1.Dispose()
	deepEqual(t, env.gc.isHeld(nodeSelector("4")), true)

	env.CollectGarbage()
	sched.runAll()
	deepEqual(t, env.BaseStore().RecordState("4"), Existent)

	h2.Dispose()
	deepEqual(t, env.gc.isHeld(nodeSelector("4")), false)
}

func TestGC_IsIncremental(t *testing.T) {
	env, sched := setupGC(t, 1)
	for _, id := range []string{"4", "5", "6"} {
		env.CommitPayload(nodeSelector(id), userPayload(id, "user "+id))
	}
	env.CollectGarbage()
	env.CollectGarbage()
	deepEqual(t, len(sched.steps), 1)

	step := sched.steps[0]
	deepEqual(t, step(), true)
	deepEqual(t, env.Stats().BaseRecords, 3)
	sched.runAll()
	deepEqual(t, env.Stats().BaseRecords, 0)
}

func TestGC_RemarksAfterWrites(t *testing.T) {
	env, sched := setupGC(t, 1)
	env.CommitPayload(nodeSelector("4"), userPayload("4", "Zuck"))
	env.CommitPayload(nodeSelector("5"), userPayload("5", "Chris"))
	env.CommitPayload(nodeSelector("6"), userPayload("6", "Dustin"))
	hold4 := env.Retain(nodeSelector("4"))
	defer hold4.Dispose()

	env.CollectGarbage()
	step := sched.steps[0]
	sched.steps = nil
	deepEqual(t, step(), true)

	// A hold taken mid-sweep protects what it reaches.
	hold6 := env.Retain(nodeSelector("6"))
	defer hold6.Dispose()
	for step() {
	}

	s := env.BaseStore()
	deepEqual(t, s.RecordState("4"), Existent)
	deepEqual(t, s.RecordState("6"), Existent)
	deepEqual(t, s.RecordState("5"), Unknown)
}

func TestGC_SkipsRecordsWithOptimisticUpdates(t *testing.T) {
	env, sched := setupGC(t, 0)
	env.CommitPayload(nodeSelector("4"), userPayload("4", "Zuck"))
	env.ApplyUpdate(renameMutation("4", "Mark"))

	env.CollectGarbage()
	sched.runAll()
	deepEqual(t, env.BaseStore().RecordState("4"), Existent)
	deepEqual(t, env.gc.isRegistered("4"), true)
}

func TestGC_ExistingRecordsAreNotCollected(t *testing.T) {
	env := setup(t, Options{})
	env.CommitPayload(nodeSelector("4"), userPayload("4", "Zuck"))
	sched := &manualScheduler{}
	env.InitializeGarbageCollector(sched.schedule)
	assertPanics(t, func() { env.InitializeGarbageCollector(sched.schedule) })

	env.CollectGarbage()
	sched.runAll()
	deepEqual(t, env.BaseStore().RecordState("4"), Existent)
}

func TestGC_DefaultSchedulerUsesExecutor(t *testing.T) {
	env := setup(t, Options{GCStepSize: 1})
	env.InitializeGarbageCollector(nil)
	env.CommitPayload(nodeSelector("4"), userPayload("4", "Zuck"))
	env.CollectGarbage()
	deepEqual(t, env.BaseStore().RecordState("4"), Existent)
	env.RunPending()
	deepEqual(t, env.BaseStore().RecordState("4"), Unknown)
}

func TestGC_RetainWithoutCollector(t *testing.T) {
	env := setup(t, Options{})
	env.Retain(nodeSelector("4")).Dispose()
	env.CollectGarbage()
}

func TestGC_EvictsRestoredRecords(t *testing.T) {
	cache := populatedCache(t)
	env := setup(t, Options{CacheManager: cache})
	sched := &manualScheduler{}
	env.InitializeGarbageCollector(sched.schedule)

	env.RestoreFromCache([]Selector{nodeSelector("4")}, RestoreCallbacks{})
	deepEqual(t, env.RecordStore().RecordState("4"), Existent)
	deepEqual(t, env.gc.isRegistered("4"), true)

	hold := env.Retain(nodeSelector("4"))
	env.CollectGarbage()
	sched.runAll()
	deepEqual(t, env.RecordStore().RecordState("4"), Existent)

	hold.Dispose()
	env.CollectGarbage()
	sched.runAll()
	deepEqual(t, env.RecordStore().RecordState("4"), Unknown)
	deepEqual(t, env.RecordStore().RecordState(RootID), Unknown)
	deepEqual(t, env.Stats().CachedRecords, 0)
}
