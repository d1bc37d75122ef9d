// Package worklist implements the content-addressed, fixed-point discovery
// queue (component G): pending discoveries keyed by RVA, conflict
// resolution between competing discoveries at the same RVA, the
// process-one/process-all loop, and the categorised result indices.
package worklist

import (
	"fmt"

	"github.com/coldino-labs/uerecover/discovery"
)

// Parser consumes a Discovery and yields zero or more follow-up
// Discoveries plus exactly one Artefact (or an error, never a crash on a
// merely-unparsable input — callers that can't parse should yield an
// UnparsableFunction artefact and a nil error instead of returning one).
type Parser func(d discovery.Discovery) ([]discovery.Discovery, discovery.Artefact, error)

// Explorer yields further discoveries implied by a just-registered
// artefact's pointer fields (component H+K).
type Explorer func(a discovery.Artefact) []discovery.Discovery

// ConflictError is fatal: two discoveries disagreed at the same RVA.
type ConflictError struct {
	RVA      discovery.RVA
	Existing discovery.Discovery
	New      discovery.Discovery
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("worklist: conflicting discoveries at %#x: %s vs %s", e.RVA, e.Existing, e.New)
}

// Worklist is the fixed-point discovery queue. It is not safe for
// concurrent use: the core is single-threaded and synchronous by design.
type Worklist struct {
	pending map[discovery.RVA]discovery.Discovery
	order   []discovery.RVA // insertion order, for deterministic iteration when popping FIFO
	found   map[discovery.RVA]discovery.Artefact

	byRecordType    map[discovery.RecordType][]discovery.StructArtefact
	byRecordTypeRVA map[discovery.RecordType]map[discovery.RVA]discovery.StructArtefact
	byParserKind    map[discovery.FunctionParserKind][]discovery.Artefact
	byParserKindRVA map[discovery.FunctionParserKind]map[discovery.RVA]discovery.Artefact
	strings         map[discovery.RVA]discovery.StringArtefact
	trampolines     map[discovery.RVA]discovery.Trampoline

	parse   Parser
	explore Explorer
	fifo    bool
}

// Option configures a Worklist at construction time.
type Option func(*Worklist)

// FIFO makes ProcessOne pop the oldest queued discovery first, instead of
// the default LIFO (stack) order. Processing order never affects the final
// artefact set (§5); this option exists so the test suite can exercise
// both orders against the same image and assert that invariant.
func FIFO() Option { return func(w *Worklist) { w.fifo = true } }

// New returns an empty Worklist that uses parse to process discoveries and
// explore to derive follow-ups from newly registered artefacts.
func New(parse Parser, explore Explorer, opts ...Option) *Worklist {
	w := &Worklist{
		pending:         make(map[discovery.RVA]discovery.Discovery),
		found:           make(map[discovery.RVA]discovery.Artefact),
		byRecordType:    make(map[discovery.RecordType][]discovery.StructArtefact),
		byRecordTypeRVA: make(map[discovery.RecordType]map[discovery.RVA]discovery.StructArtefact),
		byParserKind:    make(map[discovery.FunctionParserKind][]discovery.Artefact),
		byParserKindRVA: make(map[discovery.FunctionParserKind]map[discovery.RVA]discovery.Artefact),
		strings:         make(map[discovery.RVA]discovery.StringArtefact),
		trampolines:     make(map[discovery.RVA]discovery.Trampoline),
		parse:           parse,
		explore:         explore,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Enqueue adds d to the pending set, applying the conflict-resolution
// rules of §4.G. A NoMatch reconciliation against an existing pending
// discovery is a fatal, returned error; everything else is silent.
func (w *Worklist) Enqueue(d discovery.Discovery) error {
	rva := d.RVA()
	if !rva.Valid() {
		return nil
	}
	if _, ok := w.found[rva]; ok {
		return nil
	}
	existing, ok := w.pending[rva]
	if !ok {
		w.pending[rva] = d
		w.order = append(w.order, rva)
		return nil
	}
	switch d.Compare(existing) {
	case discovery.Keep:
		return nil
	case discovery.Replace:
		w.pending[rva] = d
		return nil
	default:
		return &ConflictError{RVA: rva, Existing: existing, New: d}
	}
}

// Pending reports whether any discovery is still queued.
func (w *Worklist) Pending() bool { return len(w.pending) > 0 }

// ProcessOne pops any one ready discovery (every discovery is always
// ready; the hook exists for future staged work), parses it, registers
// its artefact, runs the explorer over it, and enqueues whatever the
// parser and explorer yield. It returns false when there was nothing
// pending.
func (w *Worklist) ProcessOne() (bool, error) {
	if len(w.order) == 0 {
		return false, nil
	}
	var rva discovery.RVA
	if w.fifo {
		rva = w.order[0]
		w.order = w.order[1:]
	} else {
		rva = w.order[len(w.order)-1]
		w.order = w.order[:len(w.order)-1]
	}
	d, ok := w.pending[rva]
	if !ok {
		// Already resolved via Replace/Keep bookkeeping racing the order
		// slice; nothing to do for this stale entry.
		return true, nil
	}
	delete(w.pending, rva)

	follow, artefact, err := w.parse(d)
	if err != nil {
		return true, fmt.Errorf("worklist: parsing %s: %w", d, err)
	}

	for _, fd := range follow {
		if err := w.Enqueue(fd); err != nil {
			return true, err
		}
	}

	if artefact != nil {
		w.register(rva, artefact)
		for _, fd := range w.explore(artefact) {
			if err := w.Enqueue(fd); err != nil {
				return true, err
			}
		}
	}

	return true, nil
}

// ProcessAll drains the worklist, returning the first fatal error
// encountered (a conflict, or a propagated parser/explorer error).
func (w *Worklist) ProcessAll() error {
	for {
		more, err := w.ProcessOne()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

func (w *Worklist) register(rva discovery.RVA, a discovery.Artefact) {
	w.found[rva] = a

	switch v := a.(type) {
	case discovery.StringArtefact:
		w.strings[rva] = v
	case discovery.StructArtefact:
		w.byRecordType[v.Type] = append(w.byRecordType[v.Type], v)
		if w.byRecordTypeRVA[v.Type] == nil {
			w.byRecordTypeRVA[v.Type] = make(map[discovery.RVA]discovery.StructArtefact)
		}
		w.byRecordTypeRVA[v.Type][rva] = v
	case discovery.Trampoline:
		w.trampolines[rva] = v
	case discovery.StaticClassFunction:
		w.byParserKind[discovery.ParserStaticClass] = append(w.byParserKind[discovery.ParserStaticClass], v)
		w.indexParserKind(discovery.ParserStaticClass, rva, v)
	case discovery.ZConstructFunction:
		w.byParserKind[discovery.ParserZConstruct] = append(w.byParserKind[discovery.ParserZConstruct], v)
		w.indexParserKind(discovery.ParserZConstruct, rva, v)
	}
}

func (w *Worklist) indexParserKind(k discovery.FunctionParserKind, rva discovery.RVA, a discovery.Artefact) {
	if w.byParserKindRVA[k] == nil {
		w.byParserKindRVA[k] = make(map[discovery.RVA]discovery.Artefact)
	}
	w.byParserKindRVA[k][rva] = a
}

// StringAt returns the string artefact registered at rva, if any.
func (w *Worklist) StringAt(rva discovery.RVA) (discovery.StringArtefact, bool) {
	a, ok := w.strings[rva]
	return a, ok
}

// StructOf returns the struct artefact of the given record type registered
// at rva, if any.
func (w *Worklist) StructOf(rva discovery.RVA, t discovery.RecordType) (discovery.StructArtefact, bool) {
	m, ok := w.byRecordTypeRVA[t]
	if !ok {
		return discovery.StructArtefact{}, false
	}
	a, ok := m[rva]
	return a, ok
}

// ContainerOf performs a linear scan (explicitly a non-performance path,
// per §4.G) for whatever artefact is registered at rva.
func (w *Worklist) ContainerOf(rva discovery.RVA) (discovery.Artefact, bool) {
	for foundRVA, a := range w.found {
		if foundRVA == rva {
			return a, true
		}
	}
	return nil, false
}

// StructsOfType returns every struct artefact of the given record type, in
// registration order.
func (w *Worklist) StructsOfType(t discovery.RecordType) []discovery.StructArtefact {
	return w.byRecordType[t]
}

// FunctionsOfKind returns every parsed-function artefact from the given
// parser kind, in registration order.
func (w *Worklist) FunctionsOfKind(k discovery.FunctionParserKind) []discovery.Artefact {
	return w.byParserKind[k]
}

// Found returns the total artefact set, keyed by RVA.
func (w *Worklist) Found() map[discovery.RVA]discovery.Artefact { return w.found }

// SummaryByKind counts registered artefacts by artefact kind name ("String",
// "StructRecord", "ParsedFunction::StaticClass", ...).
func (w *Worklist) SummaryByKind() map[string]int {
	counts := make(map[string]int)
	for _, a := range w.found {
		counts[artefactKindName(a)]++
	}
	return counts
}

func artefactKindName(a discovery.Artefact) string {
	switch a.(type) {
	case discovery.StringArtefact:
		return "String"
	case discovery.StructArtefact:
		return "StructRecord"
	case discovery.StaticClassFunction:
		return "ParsedFunction::StaticClass"
	case discovery.ZConstructFunction:
		return "ParsedFunction::ZConstruct"
	case discovery.UnparsableFunction:
		return "UnparsableFunction"
	case discovery.Trampoline:
		return "Trampoline"
	default:
		return "Unknown"
	}
}
