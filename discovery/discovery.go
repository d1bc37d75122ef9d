// Package discovery defines the tagged value types for pending work
// (Discovery) and recovered items (Artefact) that flow through the
// worklist (component F). Go has no native sum types, so each is modeled
// as an interface implemented by a small closed set of concrete structs,
// per the polymorphism design note: dispatch is by a Kind tag plus a type
// switch, never by reflection on the concrete Go type.
package discovery

import "fmt"

// RVA is a relative virtual address within the analysed image.
type RVA uint32

// Sentinel RVAs that never denote real work, per the Discovery invariant.
const (
	NullRVA RVA = 0
	AllOnes RVA = 0xFFFFFFFF
)

// Valid reports whether rva may legitimately be enqueued.
func (r RVA) Valid() bool { return r != NullRVA && r != AllOnes }

// FunctionHint narrows what kind of function a function-discovery expects
// to find, when known in advance (e.g. from a reflection array whose
// element type is fixed). An absent hint means "parse whatever is there".
type FunctionHint int

// Recognised function hints.
const (
	HintNone FunctionHint = iota
	HintFunction
	HintEnum
	HintClass
)

func (h FunctionHint) String() string {
	switch h {
	case HintFunction:
		return "Function"
	case HintEnum:
		return "Enum"
	case HintClass:
		return "Class"
	default:
		return "None"
	}
}

// FunctionParserKind selects which of the three function-body parsers
// (component D's "parsers built on top") a function discovery should use.
type FunctionParserKind int

// Recognised function parser kinds.
const (
	ParserStaticClass FunctionParserKind = iota
	ParserZConstruct
	ParserTolerant
)

func (k FunctionParserKind) String() string {
	switch k {
	case ParserStaticClass:
		return "StaticClass"
	case ParserZConstruct:
		return "ZConstruct"
	case ParserTolerant:
		return "Tolerant"
	default:
		return "Unknown"
	}
}

// StringEncoding distinguishes UTF-8 from UTF-16 string discoveries.
type StringEncoding int

// Recognised string encodings.
const (
	EncodingUTF8 StringEncoding = iota
	EncodingUTF16
)

// RecordType identifies one of the nine reflection descriptor record
// layouts (component E). It is the stable, non-reflective identity the
// explorer registry (component H) is keyed on.
type RecordType int

// Recognised record types.
const (
	RecordUnknown RecordType = iota
	RecordPackageParams
	RecordClassParams
	RecordStructParams
	RecordEnumParams
	RecordFunctionParams
	RecordEnumeratorParams
	RecordImplementedInterfaceParams
	RecordClassFunctionLinkInfo
	RecordPropertyParams
)

func (t RecordType) String() string {
	switch t {
	case RecordPackageParams:
		return "PackageParams"
	case RecordClassParams:
		return "ClassParams"
	case RecordStructParams:
		return "StructParams"
	case RecordEnumParams:
		return "EnumParams"
	case RecordFunctionParams:
		return "FunctionParams"
	case RecordEnumeratorParams:
		return "EnumeratorParams"
	case RecordImplementedInterfaceParams:
		return "ImplementedInterfaceParams"
	case RecordClassFunctionLinkInfo:
		return "ClassFunctionLinkInfo"
	case RecordPropertyParams:
		return "PropertyParams"
	default:
		return "Unknown"
	}
}

// ConstructorKind is one of the five engine "constructor" families, named
// after the reflection entity each constructs.
type ConstructorKind int

// Recognised constructor kinds.
const (
	KindUnknown ConstructorKind = iota
	KindPackage
	KindClass
	KindStruct
	KindEnum
	KindFunction
)

func (k ConstructorKind) String() string {
	switch k {
	case KindPackage:
		return "Package"
	case KindClass:
		return "Class"
	case KindStruct:
		return "Struct"
	case KindEnum:
		return "Enum"
	case KindFunction:
		return "Function"
	default:
		return "Unknown"
	}
}

// RecordTypeForKind maps a constructor kind to the params record type its
// constructor consumes.
func RecordTypeForKind(k ConstructorKind) RecordType {
	switch k {
	case KindPackage:
		return RecordPackageParams
	case KindClass:
		return RecordClassParams
	case KindStruct:
		return RecordStructParams
	case KindEnum:
		return RecordEnumParams
	case KindFunction:
		return RecordFunctionParams
	default:
		return RecordUnknown
	}
}

// Discovery is pending work: something at a known RVA that should be
// parsed. Every concrete discovery type has the same identity (RVA, kind),
// per the §3 invariant; the worklist indexes pending entries by RVA().
type Discovery interface {
	RVA() RVA
	// Compare reconciles this discovery against an existing pending entry
	// at the same RVA, per §4.G.
	Compare(existing Discovery) Comparison
	fmt.Stringer
}

// Comparison is the outcome of reconciling two discoveries at the same RVA.
type Comparison int

// Recognised comparison outcomes.
const (
	NoMatch Comparison = iota
	Keep
	Replace
)

// StringDiscovery requests that a zero-terminated string be read at RVA.
type StringDiscovery struct {
	At       RVA
	Encoding StringEncoding
}

// RVA implements Discovery.
func (d StringDiscovery) RVA() RVA { return d.At }

func (d StringDiscovery) String() string {
	enc := "utf8"
	if d.Encoding == EncodingUTF16 {
		enc = "utf16"
	}
	return fmt.Sprintf("string-%s@%#x", enc, d.At)
}

// Compare implements the default same-variant-and-fields rule.
func (d StringDiscovery) Compare(existing Discovery) Comparison {
	other, ok := existing.(StringDiscovery)
	if !ok {
		return NoMatch
	}
	if other == d {
		return Keep
	}
	return NoMatch
}

// StructDiscovery requests that a fixed-layout record of Type be parsed at
// RVA.
type StructDiscovery struct {
	At   RVA
	Type RecordType
}

// RVA implements Discovery.
func (d StructDiscovery) RVA() RVA { return d.At }

func (d StructDiscovery) String() string { return fmt.Sprintf("struct(%s)@%#x", d.Type, d.At) }

// Compare implements the default same-variant-and-fields rule.
func (d StructDiscovery) Compare(existing Discovery) Comparison {
	other, ok := existing.(StructDiscovery)
	if !ok {
		return NoMatch
	}
	if other == d {
		return Keep
	}
	return NoMatch
}

// FunctionDiscovery requests that the function at RVA be parsed with
// Parser, optionally narrowed by Hint.
type FunctionDiscovery struct {
	At     RVA
	Parser FunctionParserKind
	Hint   FunctionHint
}

// RVA implements Discovery.
func (d FunctionDiscovery) RVA() RVA { return d.At }

func (d FunctionDiscovery) String() string {
	return fmt.Sprintf("function(%s,hint=%s)@%#x", d.Parser, d.Hint, d.At)
}

// Compare implements the function-discovery specialisation from §4.G: the
// parser must always agree; a present hint beats an absent one (Replace
// toward the more specific); equal hints Keep; unequal hints NoMatch.
func (d FunctionDiscovery) Compare(existing Discovery) Comparison {
	other, ok := existing.(FunctionDiscovery)
	if !ok {
		return NoMatch
	}
	if other.Parser != d.Parser {
		return NoMatch
	}
	switch {
	case other.Hint == d.Hint:
		return Keep
	case other.Hint == HintNone && d.Hint != HintNone:
		return Replace
	case other.Hint != HintNone && d.Hint == HintNone:
		return Keep
	default:
		return NoMatch
	}
}

// Artefact is a recovered item at a known RVA. Every variant carries the
// RVA span of the bytes it consumed.
type Artefact interface {
	Span() (start, end RVA)
	fmt.Stringer
}

// StringArtefact is a decoded zero-terminated string.
type StringArtefact struct {
	Start, End RVA
	Encoding   StringEncoding
	Text       string
}

// Span implements Artefact.
func (a StringArtefact) Span() (RVA, RVA) { return a.Start, a.End }
func (a StringArtefact) String() string   { return fmt.Sprintf("String(%q)", a.Text) }

// StructArtefact is a parsed fixed-layout (or PropertyParams) record.
type StructArtefact struct {
	Start, End RVA
	Type       RecordType
	Record     interface{}
}

// Span implements Artefact.
func (a StructArtefact) Span() (RVA, RVA) { return a.Start, a.End }
func (a StructArtefact) String() string   { return fmt.Sprintf("StructRecord(%s)", a.Type) }

// StaticClassFunction is a ParsedFunction::StaticClass artefact: the 14
// recovered arguments to GetPrivateStaticClassBody, verbatim, plus the RVA
// of that shared singleton-body function itself. Every StaticClassFunction
// in a given image is expected to agree on CalledFnRVA (§4.K's second pass
// relies on this).
type StaticClassFunction struct {
	Start, End  RVA
	Args        [14]uint64
	CalledFnRVA RVA
}

// Span implements Artefact.
func (a StaticClassFunction) Span() (RVA, RVA) { return a.Start, a.End }
func (a StaticClassFunction) String() string   { return "ParsedFunction::StaticClass" }

// ZConstructFunction is a ParsedFunction::ZConstruct artefact.
type ZConstructFunction struct {
	Start, End     RVA
	Kind           ConstructorKind
	CalledCtorRVA  RVA
	CacheRVA       RVA
	ParamsRecordRVA RVA
}

// Span implements Artefact.
func (a ZConstructFunction) Span() (RVA, RVA) { return a.Start, a.End }
func (a ZConstructFunction) String() string {
	return fmt.Sprintf("ParsedFunction::ZConstruct(kind=%s)", a.Kind)
}

// UnparsableFunction records a parse attempt that failed, never a crash.
type UnparsableFunction struct {
	Start, End RVA
	ParserTag  string
}

// Span implements Artefact.
func (a UnparsableFunction) Span() (RVA, RVA) { return a.Start, a.End }
func (a UnparsableFunction) String() string {
	return fmt.Sprintf("UnparsableFunction(%s)", a.ParserTag)
}

// Trampoline is a single JMP rel32 resolving to a parsed function.
type Trampoline struct {
	Start, End RVA
	Target     RVA
}

// Span implements Artefact.
func (a Trampoline) Span() (RVA, RVA) { return a.Start, a.End }
func (a Trampoline) String() string   { return fmt.Sprintf("Trampoline(->%#x)", a.Target) }
