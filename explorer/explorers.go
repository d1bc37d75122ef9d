package explorer

import (
	"github.com/coldino-labs/uerecover/discovery"
	"github.com/coldino-labs/uerecover/records"
	"github.com/coldino-labs/uerecover/stream"
)

// Reader is the narrow slice of image.File the explorers need: a
// positioned stream over whatever section contains an RVA.
type Reader interface {
	StreamAt(rva uint32, autoAlign bool) (*stream.Stream, error)
}

// Builders constructs the concrete explorer functions for every record
// type, closing over img to read pointer arrays out of .rdata.
type Builders struct {
	img Reader
}

// NewBuilders returns a Builders reading pointer arrays from img.
func NewBuilders(img Reader) *Builders { return &Builders{img: img} }

// RegisterAll installs every record-type and parsed-function explorer into
// reg.
func (b *Builders) RegisterAll(reg *Registry) {
	reg.Register(discovery.RecordPackageParams, b.explorePackage)
	reg.Register(discovery.RecordClassParams, b.exploreClass)
	reg.Register(discovery.RecordStructParams, b.exploreStruct)
	reg.Register(discovery.RecordFunctionParams, b.exploreFunction)
	reg.Register(discovery.RecordEnumParams, b.exploreEnum)
	reg.Register(discovery.RecordEnumeratorParams, b.exploreEnumerator)
	reg.Register(discovery.RecordImplementedInterfaceParams, b.exploreImplementedInterface)
	reg.Register(discovery.RecordClassFunctionLinkInfo, b.exploreClassFunctionLinkInfo)
	reg.Register(discovery.RecordPropertyParams, b.exploreProperty)
	reg.RegisterFunction(discovery.ParserStaticClass, b.exploreStaticClassFunction)
	reg.RegisterFunction(discovery.ParserZConstruct, b.exploreZConstructFunction)
}

func utf8At(rva uint64) discovery.Discovery {
	return discovery.StringDiscovery{At: discovery.RVA(rva), Encoding: discovery.EncodingUTF8}
}

func utf16At(rva uint64) discovery.Discovery {
	return discovery.StringDiscovery{At: discovery.RVA(rva), Encoding: discovery.EncodingUTF16}
}

func tolerantFunctionAt(rva uint64, hint discovery.FunctionHint) discovery.Discovery {
	return discovery.FunctionDiscovery{At: discovery.RVA(rva), Parser: discovery.ParserTolerant, Hint: hint}
}

func staticClassFunctionAt(rva uint64) discovery.Discovery {
	return discovery.FunctionDiscovery{At: discovery.RVA(rva), Parser: discovery.ParserStaticClass}
}

// readPointerArray reads n consecutive u64 pointers starting at rva, via an
// auto-align-free strict stream (arrays of pointers are always
// naturally aligned).
func (b *Builders) readPointerArray(rva uint64, n int32) []uint64 {
	if rva == 0 || n <= 0 {
		return nil
	}
	s, err := b.img.StreamAt(uint32(rva), false)
	if err != nil {
		return nil
	}
	out := make([]uint64, 0, n)
	for i := int32(0); i < n; i++ {
		v, err := s.U64()
		if err != nil {
			break
		}
		out = append(out, v)
	}
	return out
}

// exploreStaticClassFunction walks the 14 recovered GetPrivateStaticClassBody
// arguments: the package/class/config-name strings become String
// discoveries, and the super/within class function pointers become further
// ::StaticClass function discoveries. register_fn_ptr (Args[3]) is left
// unfollowed, matching the original implementation.
func (b *Builders) exploreStaticClassFunction(a discovery.Artefact) []discovery.Discovery {
	sc := a.(discovery.StaticClassFunction)

	var out []discovery.Discovery
	if sc.Args[0] != 0 {
		out = append(out, utf16At(sc.Args[0])) // package name
	}
	if sc.Args[1] != 0 {
		out = append(out, utf16At(sc.Args[1])) // class name
	}
	if sc.Args[8] != 0 {
		out = append(out, utf16At(sc.Args[8])) // config name
	}
	if sc.Args[12] != 0 {
		out = append(out, staticClassFunctionAt(sc.Args[12])) // super class
	}
	if sc.Args[13] != 0 {
		out = append(out, staticClassFunctionAt(sc.Args[13])) // within class
	}
	return out
}

// exploreZConstructFunction follows the params record ZConstructFunction's
// call ultimately builds. This is the sole source of that follow-up: the
// strict parser only records the artefact, leaving the exploring to this
// registered explorer.
func (b *Builders) exploreZConstructFunction(a discovery.Artefact) []discovery.Discovery {
	zc := a.(discovery.ZConstructFunction)
	if zc.ParamsRecordRVA == 0 {
		return nil
	}
	return []discovery.Discovery{
		discovery.StructDiscovery{At: zc.ParamsRecordRVA, Type: discovery.RecordTypeForKind(zc.Kind)},
	}
}

func (b *Builders) explorePackage(a discovery.Artefact) []discovery.Discovery {
	sa := a.(discovery.StructArtefact)
	p := sa.Record.(records.PackageParams)

	var out []discovery.Discovery
	if p.NameUTF8 != 0 {
		out = append(out, utf8At(p.NameUTF8))
	}
	if p.SingletonFuncArrayFn != 0 {
		for _, ptr := range b.readPointerArray(p.SingletonFuncArrayFn, p.NumSingletons) {
			out = append(out, tolerantFunctionAt(ptr, discovery.HintFunction))
		}
	}
	return out
}

func structDiscoveries(ptrs []uint64, t discovery.RecordType) []discovery.Discovery {
	out := make([]discovery.Discovery, 0, len(ptrs))
	for _, ptr := range ptrs {
		if ptr == 0 {
			continue
		}
		out = append(out, discovery.StructDiscovery{At: discovery.RVA(ptr), Type: t})
	}
	return out
}

func (b *Builders) exploreClass(a discovery.Artefact) []discovery.Discovery {
	sa := a.(discovery.StructArtefact)
	p := sa.Record.(records.ClassParams)

	var out []discovery.Discovery
	if p.ClassNoRegisterFunc != 0 {
		out = append(out, staticClassFunctionAt(p.ClassNoRegisterFunc))
	}
	if p.ClassConfigNameUTF8 != 0 {
		out = append(out, utf8At(p.ClassConfigNameUTF8))
	}
	for _, ptr := range b.readPointerArray(p.DependencySingletonFuncArray, p.NumDependencySingletons) {
		out = append(out, tolerantFunctionAt(ptr, discovery.HintNone))
	}
	out = append(out, structDiscoveries(b.readPointerArray(p.FunctionLinkArray, p.NumFunctions), discovery.RecordClassFunctionLinkInfo)...)
	out = append(out, structDiscoveries(b.readPointerArray(p.PropertyArray, p.NumProperties), discovery.RecordPropertyParams)...)
	out = append(out, structDiscoveries(b.readPointerArray(p.ImplementedInterfaceArray, p.NumImplementedInterfaces), discovery.RecordImplementedInterfaceParams)...)
	return out
}

func (b *Builders) exploreStruct(a discovery.Artefact) []discovery.Discovery {
	sa := a.(discovery.StructArtefact)
	p := sa.Record.(records.StructParams)

	var out []discovery.Discovery
	if p.OuterFunc != 0 {
		out = append(out, tolerantFunctionAt(p.OuterFunc, discovery.HintNone))
	}
	if p.SuperFunc != 0 {
		out = append(out, tolerantFunctionAt(p.SuperFunc, discovery.HintNone))
	}
	if p.NameUTF8 != 0 {
		out = append(out, utf8At(p.NameUTF8))
	}
	out = append(out, structDiscoveries(b.readPointerArray(p.PropertyArray, p.NumProperties), discovery.RecordPropertyParams)...)
	return out
}

func (b *Builders) exploreFunction(a discovery.Artefact) []discovery.Discovery {
	sa := a.(discovery.StructArtefact)
	p := sa.Record.(records.FunctionParams)

	var out []discovery.Discovery
	if p.OuterFunc != 0 {
		out = append(out, tolerantFunctionAt(p.OuterFunc, discovery.HintNone))
	}
	if p.SuperFunc != 0 {
		out = append(out, tolerantFunctionAt(p.SuperFunc, discovery.HintNone))
	}
	if p.NameUTF8 != 0 {
		out = append(out, utf8At(p.NameUTF8))
	}
	if p.OwningClassName != 0 {
		out = append(out, utf8At(p.OwningClassName))
	}
	if p.DelegateName != 0 {
		out = append(out, utf8At(p.DelegateName))
	}
	out = append(out, structDiscoveries(b.readPointerArray(p.PropertyArray, p.NumProperties), discovery.RecordPropertyParams)...)
	return out
}

func (b *Builders) exploreEnum(a discovery.Artefact) []discovery.Discovery {
	sa := a.(discovery.StructArtefact)
	p := sa.Record.(records.EnumParams)

	var out []discovery.Discovery
	if p.OuterFunc != 0 {
		out = append(out, tolerantFunctionAt(p.OuterFunc, discovery.HintNone))
	}
	if p.NameUTF8 != 0 {
		out = append(out, utf8At(p.NameUTF8))
	}
	if p.CppTypeUTF8 != 0 {
		out = append(out, utf8At(p.CppTypeUTF8))
	}
	// EnumeratorParams is a 16-byte fixed record: the array is contiguous
	// records, not an array of pointers, so the explorer enqueues one
	// struct discovery per element stride instead of dereferencing a
	// pointer array.
	for i := int32(0); i < p.NumEnumerators; i++ {
		rva := p.EnumeratorParams + uint64(i)*16
		out = append(out, discovery.StructDiscovery{At: discovery.RVA(rva), Type: discovery.RecordEnumeratorParams})
	}
	return out
}

func (b *Builders) exploreEnumerator(a discovery.Artefact) []discovery.Discovery {
	sa := a.(discovery.StructArtefact)
	p := sa.Record.(records.EnumeratorParams)
	if p.NameUTF8 == 0 {
		return nil
	}
	return []discovery.Discovery{utf8At(p.NameUTF8)}
}

func (b *Builders) exploreImplementedInterface(a discovery.Artefact) []discovery.Discovery {
	sa := a.(discovery.StructArtefact)
	p := sa.Record.(records.ImplementedInterfaceParams)
	if p.ClassFunc == 0 {
		return nil
	}
	return []discovery.Discovery{tolerantFunctionAt(p.ClassFunc, discovery.HintNone)}
}

func (b *Builders) exploreClassFunctionLinkInfo(a discovery.Artefact) []discovery.Discovery {
	sa := a.(discovery.StructArtefact)
	p := sa.Record.(records.ClassFunctionLinkInfo)

	var out []discovery.Discovery
	if p.CreateFuncPtr != 0 {
		out = append(out, discovery.FunctionDiscovery{At: discovery.RVA(p.CreateFuncPtr), Parser: discovery.ParserTolerant, Hint: discovery.HintFunction})
	}
	if p.FuncNameUTF8 != 0 {
		out = append(out, utf8At(p.FuncNameUTF8))
	}
	return out
}

// exploreProperty dispatches on PropertyKind to decide which tail pointer
// field(s) to follow, per the §4.E tail table. SetBitFunc_ptr (Bool) is
// intentionally never followed: it does not address a constructor or
// string, and attempting to parse it as one would fail.
func (b *Builders) exploreProperty(a discovery.Artefact) []discovery.Discovery {
	sa := a.(discovery.StructArtefact)
	p := sa.Record.(records.PropertyParams)

	switch p.Kind {
	case records.KindByte, records.KindEnum:
		if p.Tail.EnumFuncPtr != 0 {
			return []discovery.Discovery{tolerantFunctionAt(p.Tail.EnumFuncPtr, discovery.HintEnum)}
		}
	case records.KindClass:
		var out []discovery.Discovery
		if p.Tail.ClassFuncPtr != 0 {
			out = append(out, tolerantFunctionAt(p.Tail.ClassFuncPtr, discovery.HintClass))
		}
		if p.Tail.MetaClassFuncPtr != 0 {
			out = append(out, tolerantFunctionAt(p.Tail.MetaClassFuncPtr, discovery.HintClass))
		}
		return out
	case records.KindSoftClass:
		if p.Tail.MetaClassFuncPtr != 0 {
			return []discovery.Discovery{tolerantFunctionAt(p.Tail.MetaClassFuncPtr, discovery.HintClass)}
		}
	case records.KindObject, records.KindWeakObject, records.KindLazyObject, records.KindSoftObject:
		if p.Tail.ClassFuncPtr != 0 {
			return []discovery.Discovery{tolerantFunctionAt(p.Tail.ClassFuncPtr, discovery.HintClass)}
		}
	case records.KindInterface:
		if p.Tail.InterfaceClassFuncPtr != 0 {
			return []discovery.Discovery{tolerantFunctionAt(p.Tail.InterfaceClassFuncPtr, discovery.HintClass)}
		}
	case records.KindStruct:
		if p.Tail.ScriptStructFuncPtr != 0 {
			return []discovery.Discovery{tolerantFunctionAt(p.Tail.ScriptStructFuncPtr, discovery.HintNone)}
		}
	case records.KindDelegate, records.KindInlineMulticastDelegate, records.KindSparseMulticastDelegate:
		if p.Tail.SignatureFunctionFuncPtr != 0 {
			return []discovery.Discovery{tolerantFunctionAt(p.Tail.SignatureFunctionFuncPtr, discovery.HintFunction)}
		}
	case records.KindFieldPath:
		if p.Tail.PropertyClassFuncPtr != 0 {
			return []discovery.Discovery{tolerantFunctionAt(p.Tail.PropertyClassFuncPtr, discovery.HintNone)}
		}
	}
	return nil
}
