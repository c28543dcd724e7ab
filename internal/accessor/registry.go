// Package accessor implements C2: a statically built field-accessor table
// that replaces reflective per-event field lookup with direct extractor
// functions, closed over at startup and never mutated afterwards.
package accessor

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tbaderts/oms-sub001/internal/model"
)

// SemanticType is the declared type of a filterable field; it determines
// which comparison operators are legal against that field.
type SemanticType int

const (
	String SemanticType = iota
	Number
	Timestamp
	Enum
	Boolean
)

func (t SemanticType) String() string {
	switch t {
	case String:
		return "STRING"
	case Number:
		return "NUMBER"
	case Timestamp:
		return "TIMESTAMP"
	case Enum:
		return "ENUM"
	case Boolean:
		return "BOOLEAN"
	default:
		return "UNKNOWN"
	}
}

// Value is the typed runtime value extracted from an event field. Present
// is false when the field has no value on the given event; every operator
// must treat that as a non-match rather than an error.
type Value struct {
	Type    SemanticType
	Str     string
	Num     decimal.Decimal
	Instant time.Time
	Bool    bool
	Present bool
}

// Extractor pulls one field's value out of an event without reflection.
type Extractor func(e *model.Event) Value

// Accessor binds a field name to its semantic type and extractor.
type Accessor struct {
	Name      string
	Type      SemanticType
	Extractor Extractor
}

// Registry is an immutable, concurrency-safe field name -> Accessor table.
// It is built once at startup (see BuildOrderRegistry / BuildExecutionRegistry
// / BuildBlotterRegistry) and never modified afterward, so lookups are
// lock-free.
type Registry struct {
	fields map[string]Accessor
}

// NewRegistry constructs a Registry from a fixed accessor list. Duplicate
// names are a programmer error and panic at startup rather than silently
// shadowing unknown-field lookups later.
func NewRegistry(accessors []Accessor) *Registry {
	fields := make(map[string]Accessor, len(accessors))
	for _, a := range accessors {
		if _, exists := fields[a.Name]; exists {
			panic(fmt.Sprintf("accessor: duplicate field registration %q", a.Name))
		}
		fields[a.Name] = a
	}
	return &Registry{fields: fields}
}

// Lookup returns the accessor for a field name, or ok=false when the field
// is not part of the registered schema (an InvalidFilter condition for C1).
func (r *Registry) Lookup(name string) (Accessor, bool) {
	if r == nil {
		return Accessor{}, false
	}
	a, ok := r.fields[name]
	return a, ok
}

// Names returns the registered field names, primarily for diagnostics and tests.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.fields))
	for name := range r.fields {
		names = append(names, name)
	}
	return names
}
