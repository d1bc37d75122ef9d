// Package records declares the reflection descriptor record layouts and
// their parsers (component E): eight fixed-size records and the
// version-dependent PropertyParams.
package records

// PropertyKind is the low 6 bits of a PropertyParams's FlagsAndType field.
// ReadPropertyParams decodes Kind directly from those bits, so the values
// below are the bit patterns it expects in the binary; the worklist and
// explorers then dispatch on kind identity.
type PropertyKind uint8

// Recognised property kinds.
const (
	KindByte PropertyKind = iota
	KindInt8
	KindInt16
	KindInt
	KindInt64
	KindUInt16
	KindUInt32
	KindUInt64
	KindFloat
	KindDouble
	KindBool
	KindObject
	KindWeakObject
	KindLazyObject
	KindSoftObject
	KindClass
	KindSoftClass
	KindInterface
	KindName
	KindStr
	KindArray
	KindMap
	KindSet
	KindStruct
	KindEnum
	KindText
	KindDelegate
	KindInlineMulticastDelegate
	KindSparseMulticastDelegate
	KindFieldPath
	KindOptional
)

func (k PropertyKind) String() string {
	names := [...]string{
		"Byte", "Int8", "Int16", "Int", "Int64", "UInt16", "UInt32", "UInt64",
		"Float", "Double", "Bool", "Object", "WeakObject", "LazyObject",
		"SoftObject", "Class", "SoftClass", "Interface", "Name", "Str",
		"Array", "Map", "Set", "Struct", "Enum", "Text", "Delegate",
		"InlineMulticastDelegate", "SparseMulticastDelegate", "FieldPath",
		"Optional",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "Unknown"
}

// PropertyFlags is the 64-bit bitflag field carried by every property.
// Individual bit meanings are not interpreted by the engine; the field is
// carried opaquely for round-tripping, per the design note on flag
// enumerations in the external interface section: this engine's traversal
// never branches on a specific PropertyFlags bit, only on PropertyKind.
type PropertyFlags uint64

// ObjectFlags is the 32-bit UObject flag bitmask carried by most records.
type ObjectFlags uint32

// PackageFlags is the 32-bit package-level bitmask.
type PackageFlags uint32

// ClassFlags is the 32-bit class-level bitmask.
type ClassFlags uint32

// StructFlags is the 32-bit struct-level bitmask.
type StructFlags uint32

// FunctionFlags is the 32-bit function-level bitmask.
type FunctionFlags uint32

// EnumFlags is the 32-bit enum-level bitmask.
type EnumFlags uint32

// ArrayPropertyFlags is the array-property tail's modifier byte/word.
type ArrayPropertyFlags uint32

// MapPropertyFlags is the map-property tail's modifier byte/word.
type MapPropertyFlags uint32
