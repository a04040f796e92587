package diskcache

import (
	"io"
	"log/slog"
	"path/filepath"
	"reflect"
	"testing"
)

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func isnil[T any, P ~*T](t testing.TB, a P) {
	if a != nil {
		t.Helper()
		t.Errorf("** got &%v, wanted nil", *a)
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func setup(t testing.TB, opt Options) *Cache {
	t.Helper()
	opt.IsTesting = true
	if opt.Logger == nil {
		opt.Logger = quietLogger()
	}
	c, err := Open(filepath.Join(t.TempDir(), "cache.db"), opt)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}
