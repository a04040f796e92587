package gqlstore

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

type FieldKind int

const (
	ScalarField FieldKind = iota
	LinkedField
	PluralField
	ConnectionField
)

func (k FieldKind) String() string {
	switch k {
	case ScalarField:
		return "scalar"
	case LinkedField:
		return "linked"
	case PluralField:
		return "plural"
	case ConnectionField:
		return "connection"
	default:
		return fmt.Sprintf("invalid kind %d", int(k))
	}
}

// Arg is a field argument: either a literal Value or a reference to a
// Variable of the enclosing selector.
type Arg struct {
	Name     string
	Value    any
	Variable string
}

// Field is one node of a compiled selection. For connection fields, Fields
// selects from the edge nodes.
type Field struct {
	Name  string
	Alias string
	Args  []Arg
	Kind  FieldKind

	// IdentifyingArg names the argument whose value identifies the record a
	// root field resolves to, e.g. "id" for node(id: ...).
	IdentifyingArg string

	Fields []*Field
}

func (f *Field) ResponseKey() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

func (f *Field) argValues(vars map[string]any) map[string]any {
	if len(f.Args) == 0 {
		return nil
	}
	m := make(map[string]any, len(f.Args))
	for _, a := range f.Args {
		v := a.Value
		if a.Variable != "" {
			v = vars[a.Variable]
		}
		if v == nil {
			continue
		}
		m[a.Name] = v
	}
	return m
}

// StorageKey is the key a field's value is stored under: the field name,
// followed by the JSON of its non-null arguments when there are any.
func (f *Field) StorageKey(vars map[string]any) string {
	args := f.argValues(vars)
	if len(args) == 0 {
		return f.Name
	}
	return f.Name + string(must(json.Marshal(args)))
}

// filterCallsKey is the storage key of a connection minus its pagination
// arguments, identifying the range regardless of the page fetched.
func (f *Field) filterCallsKey(vars map[string]any) string {
	args := f.argValues(vars)
	for _, k := range paginationArgs {
		delete(args, k)
	}
	if len(args) == 0 {
		return ""
	}
	return string(must(json.Marshal(args)))
}

var paginationArgs = []string{"first", "last", "after", "before"}

// connectionStorageKey stores all pages of a connection under one key.
func (f *Field) connectionStorageKey(vars map[string]any) string {
	return f.Name + f.filterCallsKey(vars)
}

func (f *Field) identifyingArgValue(vars map[string]any) string {
	if f.IdentifyingArg == "" {
		return ""
	}
	v, ok := f.argValues(vars)[f.IdentifyingArg]
	if !ok {
		return ""
	}
	return fmt.Sprint(v)
}

func (f *Field) storageKeyFor(vars map[string]any) string {
	if f.Kind == ConnectionField {
		return f.connectionStorageKey(vars)
	}
	return f.StorageKey(vars)
}

// Selector identifies what a reader wants: a root record, a selection and
// the variables the selection is evaluated with.
type Selector struct {
	DataID    DataID
	Fields    []*Field
	Variables map[string]any
}

// Key is a stable textual identity of the selector.
func (sel Selector) Key() string {
	var buf strings.Builder
	buf.WriteString(string(sel.DataID))
	writeFieldsKey(&buf, sel.Fields, sel.Variables)
	return buf.String()
}

func writeFieldsKey(buf *strings.Builder, fields []*Field, vars map[string]any) {
	if len(fields) == 0 {
		return
	}
	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		var sub strings.Builder
		sub.WriteString(f.ResponseKey())
		sub.WriteByte(':')
		sub.WriteString(f.StorageKey(vars))
		writeFieldsKey(&sub, f.Fields, vars)
		keys = append(keys, sub.String())
	}
	sort.Strings(keys)
	buf.WriteByte('{')
	buf.WriteString(strings.Join(keys, ","))
	buf.WriteByte('}')
}
