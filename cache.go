package gqlstore

// CacheWriter is a write-through sink for persisting store writes.
type CacheWriter interface {
	// WriteNode stores the current state of a record; rec is nil when the
	// record is known not to exist.
	WriteNode(id DataID, rec *Record)
	WriteRootCall(storageKey, identArg string, id DataID)
}

// CacheManager is the persistent cache collaborator. Either writer may be nil,
// which disables persistence for that kind of write.
type CacheManager interface {
	QueryWriter() CacheWriter
	MutationWriter() CacheWriter

	// ReadNode loads a record. found=false means the cache knows nothing
	// about it; found=true with a nil record means it is known not to exist.
	ReadNode(id DataID) (rec *Record, found bool, err error)
	ReadRootCall(storageKey, identArg string) (id DataID, found bool, err error)
}

type writeKind int

const (
	writeQuery writeKind = iota
	writeMutation
)

func (env *Environment) cacheWriter(kind writeKind) CacheWriter {
	if env.cacheManager == nil {
		return nil
	}
	switch kind {
	case writeQuery:
		return env.cacheManager.QueryWriter()
	case writeMutation:
		return env.cacheManager.MutationWriter()
	default:
		panic(invariantf("invalid write kind %d", int(kind)))
	}
}
