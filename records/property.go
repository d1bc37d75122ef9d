package records

import (
	"fmt"

	"github.com/coldino-labs/uerecover/stream"
)

// Version is the subset of the engine's version tuple the property layout
// depends on: (major, minor). It is an explicit parameter to every
// PropertyParams read, never read from ambient state, so that each
// (version, kind) pair is a distinct, independently testable layout.
type Version struct {
	Major, Minor uint16
}

// AtLeast reports whether v >= other.
func (v Version) AtLeast(major, minor uint16) bool {
	if v.Major != major {
		return v.Major > major
	}
	return v.Minor >= minor
}

// Before reports whether v < other.
func (v Version) Before(major, minor uint16) bool { return !v.AtLeast(major, minor) }

// PropertyParams is the version-dependent variable-length reflection
// record describing a single UProperty.
type PropertyParams struct {
	NameUTF8Ptr        uint64
	RepNotifyFuncUTF8Ptr uint64
	PropertyFlags      PropertyFlags
	Kind               PropertyKind
	TypeModifiers      uint32
	ObjectFlags        ObjectFlags

	ArrayDim int32 // -1 if not present at the pre-5.3 slot nor read at all

	SetterFuncPtr uint64 // 0 if v < 5.1
	GetterFuncPtr uint64 // 0 if v < 5.1

	Offset uint32 // not read for Bool

	Tail PropertyTail
}

// PropertyTail holds the kind-specific trailing fields. Only the fields
// relevant to Kind are meaningful; the rest are zero.
type PropertyTail struct {
	ArrayFlags              ArrayPropertyFlags
	MapFlags                MapPropertyFlags
	ElementSize             uint32
	SizeOfOuter             uint64
	SetBitFuncPtr           uint64
	EnumFuncPtr             uint64
	MetaClassFuncPtr        uint64
	ClassFuncPtr            uint64
	SignatureFunctionFuncPtr uint64
	PropertyClassFuncPtr    uint64
	InterfaceClassFuncPtr   uint64
	ScriptStructFuncPtr     uint64
}

// ReadPropertyParams reads a PropertyParams from an auto-aligned stream,
// per the prefix + version-sensitive-middle + kind-specific-tail scheme.
func ReadPropertyParams(s *stream.Stream, v Version) (PropertyParams, error) {
	var p PropertyParams

	var err error
	if p.NameUTF8Ptr, err = s.U64(); err != nil {
		return p, err
	}
	if p.RepNotifyFuncUTF8Ptr, err = s.U64(); err != nil {
		return p, err
	}
	flags, err := s.U64()
	if err != nil {
		return p, err
	}
	p.PropertyFlags = PropertyFlags(flags)
	flagsAndType, err := s.U32()
	if err != nil {
		return p, err
	}
	p.Kind = PropertyKind(flagsAndType & 0x3F)
	p.TypeModifiers = flagsAndType &^ 0x3F
	obj, err := s.U32()
	if err != nil {
		return p, err
	}
	p.ObjectFlags = ObjectFlags(obj)

	p.ArrayDim = -1
	if v.Before(5, 3) {
		dim, err := s.I32()
		if err != nil {
			return p, err
		}
		p.ArrayDim = dim
	}

	if v.AtLeast(5, 1) {
		if p.SetterFuncPtr, err = s.U64(); err != nil {
			return p, err
		}
		if p.GetterFuncPtr, err = s.U64(); err != nil {
			return p, err
		}
	}

	if v.AtLeast(5, 3) {
		dim, err := s.U16()
		if err != nil {
			return p, err
		}
		p.ArrayDim = int32(dim)
	}

	if p.Kind != KindBool {
		if v.Before(5, 3) {
			off, err := s.U32()
			if err != nil {
				return p, err
			}
			p.Offset = off
		} else {
			off, err := s.U16()
			if err != nil {
				return p, err
			}
			p.Offset = uint32(off)
		}
	}

	if err := readPropertyTail(s, v, p.Kind, &p.Tail); err != nil {
		return p, err
	}

	return p, nil
}

func readPropertyTail(s *stream.Stream, v Version, kind PropertyKind, tail *PropertyTail) error {
	switch kind {
	case KindArray:
		if v.Before(5, 3) {
			f, err := s.U32()
			if err != nil {
				return err
			}
			tail.ArrayFlags = ArrayPropertyFlags(f)
		} else {
			f, err := s.U8()
			if err != nil {
				return err
			}
			tail.ArrayFlags = ArrayPropertyFlags(f)
		}

	case KindBool:
		if v.Before(5, 3) {
			elem, err := s.U32()
			if err != nil {
				return err
			}
			outer, err := s.U64()
			if err != nil {
				return err
			}
			tail.ElementSize = elem
			tail.SizeOfOuter = outer
		} else {
			elem, err := s.U16()
			if err != nil {
				return err
			}
			outer, err := s.U16()
			if err != nil {
				return err
			}
			tail.ElementSize = uint32(elem)
			tail.SizeOfOuter = uint64(outer)
		}
		ptr, err := s.U64()
		if err != nil {
			return err
		}
		tail.SetBitFuncPtr = ptr

	case KindByte, KindEnum:
		ptr, err := s.U64()
		if err != nil {
			return err
		}
		tail.EnumFuncPtr = ptr

	case KindClass:
		if v.Before(5, 1) {
			meta, err := s.U64()
			if err != nil {
				return err
			}
			cls, err := s.U64()
			if err != nil {
				return err
			}
			tail.MetaClassFuncPtr = meta
			tail.ClassFuncPtr = cls
		} else {
			cls, err := s.U64()
			if err != nil {
				return err
			}
			meta, err := s.U64()
			if err != nil {
				return err
			}
			tail.ClassFuncPtr = cls
			tail.MetaClassFuncPtr = meta
		}

	case KindDelegate, KindInlineMulticastDelegate, KindSparseMulticastDelegate:
		ptr, err := s.U64()
		if err != nil {
			return err
		}
		tail.SignatureFunctionFuncPtr = ptr

	case KindFieldPath:
		ptr, err := s.U64()
		if err != nil {
			return err
		}
		tail.PropertyClassFuncPtr = ptr

	case KindInterface:
		ptr, err := s.U64()
		if err != nil {
			return err
		}
		tail.InterfaceClassFuncPtr = ptr

	case KindMap:
		if v.Before(5, 3) {
			f, err := s.U32()
			if err != nil {
				return err
			}
			tail.MapFlags = MapPropertyFlags(f)
		} else {
			f, err := s.U8()
			if err != nil {
				return err
			}
			tail.MapFlags = MapPropertyFlags(f)
		}

	case KindObject, KindWeakObject, KindLazyObject, KindSoftObject:
		ptr, err := s.U64()
		if err != nil {
			return err
		}
		tail.ClassFuncPtr = ptr

	case KindSoftClass:
		ptr, err := s.U64()
		if err != nil {
			return err
		}
		tail.MetaClassFuncPtr = ptr

	case KindStruct:
		ptr, err := s.U64()
		if err != nil {
			return err
		}
		tail.ScriptStructFuncPtr = ptr
	}
	return nil
}

func (p PropertyParams) String() string {
	return fmt.Sprintf("PropertyParams{kind=%s, offset=%#x}", p.Kind, p.Offset)
}
