package gqlstore

import (
	"io"
	"log/slog"
	"reflect"
	"testing"
)

var (
	userFields = []*Field{
		{Name: "id"},
		{Name: "name"},
	}
	nodeField = &Field{
		Name:           "node",
		Kind:           LinkedField,
		Args:           []Arg{{Name: "id", Variable: "id"}},
		IdentifyingArg: "id",
		Fields:         userFields,
	}
)

func nodeSelector(id string) Selector {
	return Selector{
		DataID:    RootID,
		Fields:    []*Field{nodeField},
		Variables: map[string]any{"id": id},
	}
}

func userPayload(id, name string) Payload {
	return Payload{"node": Payload{"id": id, "__typename": "User", "name": name}}
}

type fakeNetwork struct {
	requests []*MutationRequest
}

func (n *fakeNetwork) SendMutation(req *MutationRequest) {
	n.requests = append(n.requests, req)
}

func (n *fakeNetwork) last(t testing.TB) *MutationRequest {
	t.Helper()
	if len(n.requests) == 0 {
		t.Fatalf("** no mutation requests sent")
	}
	return n.requests[len(n.requests)-1]
}

type testEnv struct {
	*Environment
	net *fakeNetwork
}

func setup(t testing.TB, opt Options) *testEnv {
	t.Helper()
	net := &fakeNetwork{}
	if opt.Network == nil {
		opt.Network = net
	}
	if opt.IDGenerator == nil {
		opt.IDGenerator = &CounterIDGenerator{Prefix: "m"}
	}
	if opt.Logger == nil {
		opt.Logger = testLogger(t)
	}
	return &testEnv{Open(opt), net}
}

func testLogger(t testing.TB) *slog.Logger {
	if testing.Verbose() {
		return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

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

func isnonnil[T any](t testing.TB, a *T) {
	if a == nil {
		t.Helper()
		t.Errorf("** got nil %T, wanted non-nil", a)
	}
}

func assertPanics(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	fn()
}

func field(t testing.TB, s *RecordStore, id DataID, key string) any {
	t.Helper()
	v, ok := s.Field(id, key)
	if !ok {
		t.Fatalf("** %s.%s is missing", id, key)
	}
	return v
}
