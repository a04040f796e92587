package diskcache_test

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/andreyvit/gqlstore"
	"github.com/andreyvit/gqlstore/diskcache"
)

var nodeField = &gqlstore.Field{
	Name:           "node",
	Kind:           gqlstore.LinkedField,
	Args:           []gqlstore.Arg{{Name: "id", Variable: "id"}},
	IdentifyingArg: "id",
	Fields:         []*gqlstore.Field{{Name: "id"}, {Name: "name"}},
}

func nodeSelector(id string) gqlstore.Selector {
	return gqlstore.Selector{
		DataID:    gqlstore.RootID,
		Fields:    []*gqlstore.Field{nodeField},
		Variables: map[string]any{"id": id},
	}
}

func TestRestoreAcrossReopen(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "cache.db")

	cache, err := diskcache.Open(path, diskcache.Options{Logger: logger, IsTesting: true})
	if err != nil {
		t.Fatal(err)
	}
	env := gqlstore.Open(gqlstore.Options{Logger: logger, CacheManager: cache})
	env.CommitPayload(nodeSelector("4"), gqlstore.Payload{
		"node": gqlstore.Payload{"id": "4", "__typename": "User", "name": "Zuck"},
	})
	if err := cache.Close(); err != nil {
		t.Fatal(err)
	}

	cache, err = diskcache.Open(path, diskcache.Options{Logger: logger, IsTesting: true})
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	env = gqlstore.Open(gqlstore.Options{Logger: logger, CacheManager: cache})
	var failure error
	env.RestoreFromCache([]gqlstore.Selector{nodeSelector("4")}, gqlstore.RestoreCallbacks{
		OnFailure: func(err error) { failure = err },
	})
	if failure != nil {
		t.Fatal(failure)
	}

	snap := env.Lookup(nodeSelector("4"))
	if snap.IsMissingData {
		t.Fatalf("** restored snapshot is missing data: %v", snap.Data)
	}
	if name := snap.Data["node"].(gqlstore.Payload)["name"]; name != "Zuck" {
		t.Errorf("** got %v, wanted Zuck", name)
	}
	if typ := env.CachedStore().Type("4"); typ != "User" {
		t.Errorf("** got type %q, wanted User", typ)
	}
}
