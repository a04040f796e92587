package gqlstore

type RestoreCallbacks struct {
	OnSuccess func()
	OnFailure func(err error)
}

// RestoreFromCache loads the records the selectors need from the persistent
// cache into the cached layer. Records the store already knows are not read
// again. A read error stops the walk; whatever was restored by then stays.
// The callbacks run synchronously, and subscribers hear about the restored
// records on the next executor turn, failure or not.
func (env *Environment) RestoreFromCache(sels []Selector, cb RestoreCallbacks) {
	if env.cacheManager == nil {
		env.finishRestore(cb, nil)
		return
	}
	rs := &restorer{
		env:     env,
		tracker: NewChangeTracker(),
		known:   env.arena.store(layerBase),
	}
	rs.w = newRecordWriter(env.arena, layerCached, nil, rs.tracker)

	var err error
	for _, sel := range sels {
		if err = rs.restoreSelector(sel); err != nil {
			break
		}
	}
	cs := rs.tracker.ChangeSet()
	if env.verbose {
		env.logger.Debug("gqlstore: restored from cache", "records", len(cs.Created), "failed", err != nil)
	}
	env.handleChangeSet(cs)
	env.finishRestore(cb, err)
}

func (env *Environment) finishRestore(cb RestoreCallbacks, err error) {
	var cbErr error
	if err != nil {
		env.logger.Warn("gqlstore: cache restore failed", "err", err)
		if cb.OnFailure != nil {
			cbErr = safelyCall(func() { cb.OnFailure(err) })
		}
	} else if cb.OnSuccess != nil {
		cbErr = safelyCall(cb.OnSuccess)
	}
	if cbErr != nil {
		env.logger.Error("gqlstore: restore callback failed", "err", cbErr)
	}
}

type restorer struct {
	env     *Environment
	tracker *ChangeTracker
	w       *RecordWriter
	known   *RecordStore
}

func (rs *restorer) restoreSelector(sel Selector) error {
	vars := sel.Variables
	rec, err := rs.load(sel.DataID)
	if err != nil {
		return err
	}
	for _, f := range sel.Fields {
		if f.Kind == ScalarField {
			continue
		}
		var childID DataID
		var ok bool
		if rec != nil {
			childID, ok = rec.Links[f.storageKeyFor(vars)]
		}
		if !ok && sel.DataID == RootID && f.Kind == LinkedField {
			childID, ok, err = rs.rootCall(f, vars)
			if err != nil {
				return err
			}
		}
		if ok {
			if err := rs.restoreField(childID, f, vars); err != nil {
				return err
			}
		} else if rec != nil && f.Kind == PluralField {
			for _, id := range rec.LinkLists[f.StorageKey(vars)] {
				if err := rs.restoreRecord(id, f.Fields, vars); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (rs *restorer) rootCall(f *Field, vars map[string]any) (DataID, bool, error) {
	key, identArg := f.StorageKey(vars), f.identifyingArgValue(vars)
	if id, ok := rs.known.RootCallID(key, identArg); ok {
		return id, true, nil
	}
	id, found, err := rs.env.cacheManager.ReadRootCall(key, identArg)
	if err != nil {
		return "", false, restoreError(err, DataID(key))
	}
	if !found {
		return "", false, nil
	}
	rs.w.PutDataID(key, identArg, id)
	return id, true, nil
}

func (rs *restorer) restoreField(id DataID, f *Field, vars map[string]any) error {
	if f.Kind == ConnectionField {
		return rs.restoreConnection(id, f, vars)
	}
	return rs.restoreRecord(id, f.Fields, vars)
}

// load returns the record, reading it from the cache when neither the base
// nor the cached layer knows it.
func (rs *restorer) load(id DataID) (*Record, error) {
	if rec, state := rs.known.Get(id); state != Unknown {
		return rec, nil
	}
	rec, found, err := rs.env.cacheManager.ReadNode(id)
	if err != nil {
		return nil, restoreError(err, id)
	}
	if !found {
		return nil, nil
	}
	rs.w.putRecordSnapshot(id, rec)
	return rec, nil
}

func (rs *restorer) restoreRecord(id DataID, fields []*Field, vars map[string]any) error {
	rec, err := rs.load(id)
	if err != nil || rec == nil {
		return err
	}
	for _, f := range fields {
		switch f.Kind {
		case LinkedField:
			if child, ok := rec.Links[f.StorageKey(vars)]; ok {
				if err := rs.restoreRecord(child, f.Fields, vars); err != nil {
					return err
				}
			}
		case PluralField:
			for _, child := range rec.LinkLists[f.StorageKey(vars)] {
				if err := rs.restoreRecord(child, f.Fields, vars); err != nil {
					return err
				}
			}
		case ConnectionField:
			if connID, ok := rec.Links[f.connectionStorageKey(vars)]; ok {
				if err := rs.restoreConnection(connID, f, vars); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (rs *restorer) restoreConnection(connID DataID, f *Field, vars map[string]any) error {
	rec, err := rs.load(connID)
	if err != nil || rec == nil || rec.Range == nil {
		return err
	}
	for _, e := range rec.Range.Edges {
		if _, err := rs.load(e.EdgeID); err != nil {
			return err
		}
		if err := rs.restoreRecord(e.NodeID, f.Fields, vars); err != nil {
			return err
		}
	}
	return nil
}
