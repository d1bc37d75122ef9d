package seed

import (
	"fmt"
	"sort"

	"github.com/coldino-labs/uerecover/disasm"
	"github.com/coldino-labs/uerecover/discovery"
	"github.com/coldino-labs/uerecover/records"
)

// CalleeGroup is every seed that calls the same constructor RVA.
type CalleeGroup struct {
	CallRVA   uint32
	StackSize uint32
	Seeds     []ZConstructSeed
}

// GroupByCallee groups seeds by CallRVA and disassembles each callee's
// prologue once to record its stack size. Groups are sorted by ascending
// caller count, per §4.I step 2.
func GroupByCallee(img Reader, seeds []ZConstructSeed) ([]CalleeGroup, error) {
	byCallee := make(map[uint32][]ZConstructSeed)
	var order []uint32
	for _, s := range seeds {
		if _, ok := byCallee[s.CallRVA]; !ok {
			order = append(order, s.CallRVA)
		}
		byCallee[s.CallRVA] = append(byCallee[s.CallRVA], s)
	}

	groups := make([]CalleeGroup, 0, len(order))
	for _, callRVA := range order {
		stream, err := img.StreamAt(callRVA, false)
		if err != nil {
			return nil, fmt.Errorf("seed: locating callee %#x: %w", callRVA, err)
		}
		data, err := stream.Bytes(stream.Remaining())
		if err != nil {
			return nil, fmt.Errorf("seed: reading callee %#x: %w", callRVA, err)
		}
		dec := disasm.NewDecoder(data, callRVA)
		stackSize, _, err := disasm.Prologue(dec)
		if err != nil {
			return nil, fmt.Errorf("seed: disassembling callee prologue %#x: %w", callRVA, err)
		}
		groups = append(groups, CalleeGroup{CallRVA: callRVA, StackSize: stackSize, Seeds: byCallee[callRVA]})
	}

	sort.SliceStable(groups, func(i, j int) bool { return len(groups[i].Seeds) < len(groups[j].Seeds) })
	return groups, nil
}

// Bounds describes a section's RVA range, used by the record-layout
// validators to check pointer fields land in the expected section.
type Bounds struct {
	Base, End uint32
}

func (b Bounds) Contains(rva uint32) bool { return rva != 0 && rva >= b.Base && rva < b.End }

// ClassificationSections carries the .text/.rdata bounds the validators
// check pointer fields against.
type ClassificationSections struct {
	Text, RData Bounds
}

// SectionBounds derives section Bounds from an image Reader.
func SectionBounds(img Reader, name string) (Bounds, error) {
	base, data, err := img.BytesOfSection(name)
	if err != nil {
		return Bounds{}, err
	}
	return Bounds{Base: base, End: base + uint32(len(data))}, nil
}

// Analyze runs the whole of §4.I once per image: sweep, group, and
// classify, scanning textSection and bounding pointer validation against
// textSection/rdataSection. It is the single entry point the analysis
// context calls before handing the resulting Tables to the parser
// package as parser.SeedTables.
func Analyze(img Reader, textSection, rdataSection string) (*Tables, []ZConstructSeed, error) {
	seeds, err := Sweep(img, textSection)
	if err != nil {
		return nil, nil, fmt.Errorf("seed: sweep: %w", err)
	}

	groups, err := GroupByCallee(img, seeds)
	if err != nil {
		return nil, nil, fmt.Errorf("seed: grouping: %w", err)
	}

	text, err := SectionBounds(img, textSection)
	if err != nil {
		return nil, nil, fmt.Errorf("seed: locating %s: %w", textSection, err)
	}
	rdata, err := SectionBounds(img, rdataSection)
	if err != nil {
		return nil, nil, fmt.Errorf("seed: locating %s: %w", rdataSection, err)
	}

	tables, err := Classify(img, groups, ClassificationSections{Text: text, RData: rdata})
	if err != nil {
		return nil, nil, fmt.Errorf("seed: classification: %w", err)
	}
	return tables, seeds, nil
}

// candidateKinds is the fixed classification order: every representative
// struct_rva is tried against each of these, in turn, until exactly one
// validates.
var candidateKinds = []discovery.ConstructorKind{
	discovery.KindPackage,
	discovery.KindClass,
	discovery.KindStruct,
	discovery.KindEnum,
	discovery.KindFunction,
}

// ErrAmbiguousClassification is fatal: more than one candidate record type
// validated for the same callee.
type ErrAmbiguousClassification struct {
	CallRVA uint32
	Matches []discovery.ConstructorKind
}

func (e *ErrAmbiguousClassification) Error() string {
	return fmt.Sprintf("seed: callee %#x validates as more than one record type: %v", e.CallRVA, e.Matches)
}

// ErrNoClassification is fatal: no candidate record type validated for a
// callee.
type ErrNoClassification struct{ CallRVA uint32 }

func (e *ErrNoClassification) Error() string {
	return fmt.Sprintf("seed: callee %#x does not validate as any known record type", e.CallRVA)
}

// ErrWrongConstructorCount is the §4.I step-4 post-condition failure.
type ErrWrongConstructorCount struct{ Got int }

func (e *ErrWrongConstructorCount) Error() string {
	return fmt.Sprintf("seed: classified %d constructors, want exactly 5", e.Got)
}

// ConstructorInfo is one entry of the classification outcome table.
type ConstructorInfo struct {
	RVA       uint32
	StackSize uint32
	Callers   []ZConstructSeed
}

// Tables is the §4.I step-3 classification outcome: the per-kind
// constructor table plus the three RVA lookup tables downstream strict
// parsing depends on.
type Tables struct {
	ByKind              map[discovery.ConstructorKind]ConstructorInfo
	KindOfZConstructFn  map[uint32]discovery.ConstructorKind
	KindOfParamsStruct  map[uint32]discovery.ConstructorKind
	KindOfConstructorFn map[uint32]discovery.ConstructorKind
}

// Classify runs step 3-4 of §4.I: classify every callee group among the
// five record types using a representative caller's struct_rva, then
// build the lookup tables. It is fatal (returns an error) unless exactly
// five constructors are identified.
func Classify(img Reader, groups []CalleeGroup, sections ClassificationSections) (*Tables, error) {
	t := &Tables{
		ByKind:              make(map[discovery.ConstructorKind]ConstructorInfo),
		KindOfZConstructFn:  make(map[uint32]discovery.ConstructorKind),
		KindOfParamsStruct:  make(map[uint32]discovery.ConstructorKind),
		KindOfConstructorFn: make(map[uint32]discovery.ConstructorKind),
	}

	for _, g := range groups {
		kind, err := classifyCallee(img, g, sections)
		if err != nil {
			return nil, err
		}
		t.ByKind[kind] = ConstructorInfo{RVA: g.CallRVA, StackSize: g.StackSize, Callers: g.Seeds}
		t.KindOfConstructorFn[g.CallRVA] = kind
		for _, s := range g.Seeds {
			t.KindOfZConstructFn[s.FnRVA] = kind
			t.KindOfParamsStruct[s.StructRVA] = kind
		}
	}

	if len(t.ByKind) != 5 {
		return nil, &ErrWrongConstructorCount{Got: len(t.ByKind)}
	}
	return t, nil
}

func classifyCallee(img Reader, g CalleeGroup, sections ClassificationSections) (discovery.ConstructorKind, error) {
	if len(g.Seeds) == 0 {
		return discovery.KindUnknown, &ErrNoClassification{CallRVA: g.CallRVA}
	}
	structRVA := g.Seeds[0].StructRVA

	var matches []discovery.ConstructorKind
	for _, kind := range candidateKinds {
		ok, err := validates(img, structRVA, kind, sections)
		if err != nil {
			continue
		}
		if ok {
			matches = append(matches, kind)
		}
	}

	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return discovery.KindUnknown, &ErrNoClassification{CallRVA: g.CallRVA}
	default:
		return discovery.KindUnknown, &ErrAmbiguousClassification{CallRVA: g.CallRVA, Matches: matches}
	}
}

func strOK(sections ClassificationSections, ptr uint64) bool {
	return ptr == 0 || sections.RData.Contains(uint32(ptr))
}

func fnOK(sections ClassificationSections, ptr uint64) bool {
	return ptr == 0 || sections.Text.Contains(uint32(ptr))
}

func arrOK(sections ClassificationSections, ptr uint64, count int32) bool {
	if ptr == 0 {
		return true
	}
	if !sections.RData.Contains(uint32(ptr)) {
		return false
	}
	return count >= 0 && count <= 0x2000
}

func validates(img Reader, structRVA uint32, kind discovery.ConstructorKind, sections ClassificationSections) (bool, error) {
	s, err := img.StreamAt(structRVA, false)
	if err != nil {
		return false, err
	}

	switch kind {
	case discovery.KindPackage:
		p, err := records.ReadPackageParams(s)
		if err != nil {
			return false, err
		}
		return strOK(sections, p.NameUTF8) && arrOK(sections, p.SingletonFuncArrayFn, p.NumSingletons), nil

	case discovery.KindClass:
		p, err := records.ReadClassParams(s)
		if err != nil {
			return false, err
		}
		return fnOK(sections, p.ClassNoRegisterFunc) &&
			strOK(sections, p.ClassConfigNameUTF8) &&
			arrOK(sections, p.DependencySingletonFuncArray, p.NumDependencySingletons) &&
			arrOK(sections, p.FunctionLinkArray, p.NumFunctions) &&
			arrOK(sections, p.PropertyArray, p.NumProperties) &&
			arrOK(sections, p.ImplementedInterfaceArray, p.NumImplementedInterfaces), nil

	case discovery.KindStruct:
		p, err := records.ReadStructParams(s)
		if err != nil {
			return false, err
		}
		return fnOK(sections, p.OuterFunc) &&
			fnOK(sections, p.SuperFunc) &&
			fnOK(sections, p.StructOpsFunc) &&
			strOK(sections, p.NameUTF8) &&
			arrOK(sections, p.PropertyArray, p.NumProperties) &&
			p.SizeOf <= 0x1000000 && p.AlignOf <= 4096, nil

	case discovery.KindEnum:
		p, err := records.ReadEnumParams(s)
		if err != nil {
			return false, err
		}
		return fnOK(sections, p.OuterFunc) &&
			fnOK(sections, p.DisplayNameFn) &&
			strOK(sections, p.NameUTF8) &&
			strOK(sections, p.CppTypeUTF8) &&
			arrOK(sections, p.EnumeratorParams, p.NumEnumerators), nil

	case discovery.KindFunction:
		p, err := records.ReadFunctionParams(s)
		if err != nil {
			return false, err
		}
		return fnOK(sections, p.OuterFunc) &&
			fnOK(sections, p.SuperFunc) &&
			strOK(sections, p.NameUTF8) &&
			strOK(sections, p.OwningClassName) &&
			strOK(sections, p.DelegateName) &&
			arrOK(sections, p.PropertyArray, p.NumProperties) &&
			p.StructureSize <= 0x1000000, nil
	}
	return false, nil
}
