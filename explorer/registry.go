// Package explorer implements the process-wide record-type/kind → explorer
// registry (component H) and the concrete reference-graph-walk explorers
// for every record type (component K).
package explorer

import (
	"sync"

	"github.com/coldino-labs/uerecover/discovery"
)

// Func yields the discoveries implied by a record's pointer fields.
type Func func(a discovery.Artefact) []discovery.Discovery

// Registry is a one-shot-registration, read-many lookup table from record
// type (for StructArtefacts) or parser kind (for the two parsed-function
// artefact variants, which carry no RecordType) to explorer function. It is
// safe to read concurrently once populated; registration itself is
// expected to happen once at startup.
type Registry struct {
	mu           sync.Mutex
	byType       map[discovery.RecordType]Func
	byParserKind map[discovery.FunctionParserKind]Func
	onWarn       func(format string, args ...interface{})
}

// NewRegistry returns an empty Registry. warn receives a message whenever a
// type is registered more than once (a logged warning, never fatal).
func NewRegistry(warn func(format string, args ...interface{})) *Registry {
	if warn == nil {
		warn = func(string, ...interface{}) {}
	}
	return &Registry{
		byType:       make(map[discovery.RecordType]Func),
		byParserKind: make(map[discovery.FunctionParserKind]Func),
		onWarn:       warn,
	}
}

// Register installs fn as the explorer for t. Re-registering a type logs a
// warning and replaces the previous entry.
func (r *Registry) Register(t discovery.RecordType, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byType[t]; exists {
		r.onWarn("explorer: re-registering explorer for record type %s", t)
	}
	r.byType[t] = fn
}

// RegisterFunction installs fn as the explorer for the parsed-function
// artefact produced by parser kind k (StaticClassFunction/ZConstructFunction
// aren't StructArtefacts, so RecordType can't key them). Re-registering a
// kind logs a warning and replaces the previous entry.
func (r *Registry) RegisterFunction(k discovery.FunctionParserKind, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byParserKind[k]; exists {
		r.onWarn("explorer: re-registering explorer for parser kind %s", k)
	}
	r.byParserKind[k] = fn
}

// Explore looks up the explorer for the artefact's concrete record type (or
// parsed-function variant) and invokes it. An artefact whose type has no
// registered explorer yields no further discoveries.
func (r *Registry) Explore(a discovery.Artefact) []discovery.Discovery {
	switch v := a.(type) {
	case discovery.StructArtefact:
		r.mu.Lock()
		fn, ok := r.byType[v.Type]
		r.mu.Unlock()
		if !ok {
			return nil
		}
		return fn(a)
	case discovery.StaticClassFunction:
		return r.exploreFunction(discovery.ParserStaticClass, a)
	case discovery.ZConstructFunction:
		return r.exploreFunction(discovery.ParserZConstruct, a)
	default:
		return nil
	}
}

func (r *Registry) exploreFunction(k discovery.FunctionParserKind, a discovery.Artefact) []discovery.Discovery {
	r.mu.Lock()
	fn, ok := r.byParserKind[k]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return fn(a)
}

// AsFunc adapts a Registry for use as a worklist.Explorer without an import
// cycle (worklist imports discovery, not explorer).
func (r *Registry) AsFunc() Func { return r.Explore }
