package records

import "github.com/coldino-labs/uerecover/stream"

// PackageParams is the 32-byte fixed reflection record for a package.
type PackageParams struct {
	NameUTF8            uint64
	SingletonFuncArrayFn uint64
	NumSingletons       int32
	PackageFlags        PackageFlags
	BodyCRC             uint32
	DeclarationsCRC     uint32
}

// ReadPackageParams reads a PackageParams in declared field order.
func ReadPackageParams(s *stream.Stream) (PackageParams, error) {
	var p PackageParams
	var err error
	if p.NameUTF8, err = s.U64(); err != nil {
		return p, err
	}
	if p.SingletonFuncArrayFn, err = s.U64(); err != nil {
		return p, err
	}
	n, err := s.I32()
	if err != nil {
		return p, err
	}
	p.NumSingletons = n
	flags, err := s.U32()
	if err != nil {
		return p, err
	}
	p.PackageFlags = PackageFlags(flags)
	if p.BodyCRC, err = s.U32(); err != nil {
		return p, err
	}
	if p.DeclarationsCRC, err = s.U32(); err != nil {
		return p, err
	}
	return p, nil
}

// ClassParams is the 80-byte fixed reflection record for a class.
type ClassParams struct {
	ClassNoRegisterFunc          uint64
	ClassConfigNameUTF8          uint64
	CppClassInfo                 uint64
	DependencySingletonFuncArray uint64
	FunctionLinkArray            uint64
	PropertyArray                uint64
	ImplementedInterfaceArray    uint64
	NumDependencySingletons      int32
	NumFunctions                 int32
	NumProperties                int32
	NumImplementedInterfaces     int32
	ClassFlags                   ClassFlags
}

// ReadClassParams reads a ClassParams in declared field order.
func ReadClassParams(s *stream.Stream) (ClassParams, error) {
	var p ClassParams
	ptrs := []*uint64{
		&p.ClassNoRegisterFunc, &p.ClassConfigNameUTF8, &p.CppClassInfo,
		&p.DependencySingletonFuncArray, &p.FunctionLinkArray,
		&p.PropertyArray, &p.ImplementedInterfaceArray,
	}
	for _, dst := range ptrs {
		v, err := s.U64()
		if err != nil {
			return p, err
		}
		*dst = v
	}
	ints := []*int32{&p.NumDependencySingletons, &p.NumFunctions, &p.NumProperties, &p.NumImplementedInterfaces}
	for _, dst := range ints {
		v, err := s.I32()
		if err != nil {
			return p, err
		}
		*dst = v
	}
	flags, err := s.U32()
	if err != nil {
		return p, err
	}
	p.ClassFlags = ClassFlags(flags)
	return p, nil
}

// StructParams is the 72-byte fixed reflection record for a struct (68
// bytes of fields plus trailing padding).
type StructParams struct {
	OuterFunc     uint64
	SuperFunc     uint64
	StructOpsFunc uint64
	NameUTF8      uint64
	SizeOf        uint64
	AlignOf       uint64
	PropertyArray uint64
	NumProperties int32
	ObjectFlags   ObjectFlags
	StructFlags   StructFlags
}

// ReadStructParams reads a StructParams in declared field order.
func ReadStructParams(s *stream.Stream) (StructParams, error) {
	var p StructParams
	ptrs := []*uint64{&p.OuterFunc, &p.SuperFunc, &p.StructOpsFunc, &p.NameUTF8, &p.SizeOf, &p.AlignOf, &p.PropertyArray}
	for _, dst := range ptrs {
		v, err := s.U64()
		if err != nil {
			return p, err
		}
		*dst = v
	}
	n, err := s.I32()
	if err != nil {
		return p, err
	}
	p.NumProperties = n
	obj, err := s.U32()
	if err != nil {
		return p, err
	}
	p.ObjectFlags = ObjectFlags(obj)
	sf, err := s.U32()
	if err != nil {
		return p, err
	}
	p.StructFlags = StructFlags(sf)
	return p, nil
}

// EnumParams is the 56-byte fixed reflection record for an enum.
type EnumParams struct {
	OuterFunc        uint64
	DisplayNameFn    uint64
	NameUTF8         uint64
	CppTypeUTF8      uint64
	EnumeratorParams uint64
	NumEnumerators   int32
	ObjectFlags      ObjectFlags
	EnumFlags        EnumFlags
	CppForm          uint8
}

// ReadEnumParams reads an EnumParams in declared field order.
func ReadEnumParams(s *stream.Stream) (EnumParams, error) {
	var p EnumParams
	ptrs := []*uint64{&p.OuterFunc, &p.DisplayNameFn, &p.NameUTF8, &p.CppTypeUTF8, &p.EnumeratorParams}
	for _, dst := range ptrs {
		v, err := s.U64()
		if err != nil {
			return p, err
		}
		*dst = v
	}
	n, err := s.I32()
	if err != nil {
		return p, err
	}
	p.NumEnumerators = n
	obj, err := s.U32()
	if err != nil {
		return p, err
	}
	p.ObjectFlags = ObjectFlags(obj)
	ef, err := s.U32()
	if err != nil {
		return p, err
	}
	p.EnumFlags = EnumFlags(ef)
	form, err := s.U8()
	if err != nil {
		return p, err
	}
	p.CppForm = form
	return p, nil
}

// FunctionParams is the 72-byte fixed reflection record for a UFunction.
type FunctionParams struct {
	OuterFunc       uint64
	SuperFunc       uint64
	NameUTF8        uint64
	OwningClassName uint64
	DelegateName    uint64
	StructureSize   uint64
	PropertyArray   uint64
	NumProperties   int32
	ObjectFlags     ObjectFlags
	FunctionFlags   FunctionFlags
	RPCId           uint16
	RPCResponseId   uint16
}

// ReadFunctionParams reads a FunctionParams in declared field order.
func ReadFunctionParams(s *stream.Stream) (FunctionParams, error) {
	var p FunctionParams
	ptrs := []*uint64{&p.OuterFunc, &p.SuperFunc, &p.NameUTF8, &p.OwningClassName, &p.DelegateName, &p.StructureSize, &p.PropertyArray}
	for _, dst := range ptrs {
		v, err := s.U64()
		if err != nil {
			return p, err
		}
		*dst = v
	}
	n, err := s.I32()
	if err != nil {
		return p, err
	}
	p.NumProperties = n
	obj, err := s.U32()
	if err != nil {
		return p, err
	}
	p.ObjectFlags = ObjectFlags(obj)
	ff, err := s.U32()
	if err != nil {
		return p, err
	}
	p.FunctionFlags = FunctionFlags(ff)
	rpc, err := s.U16()
	if err != nil {
		return p, err
	}
	p.RPCId = rpc
	resp, err := s.U16()
	if err != nil {
		return p, err
	}
	p.RPCResponseId = resp
	return p, nil
}

// EnumeratorParams is the 16-byte fixed reflection record for one value of
// an enum.
type EnumeratorParams struct {
	NameUTF8 uint64
	Value    int64
}

// ReadEnumeratorParams reads an EnumeratorParams in declared field order.
func ReadEnumeratorParams(s *stream.Stream) (EnumeratorParams, error) {
	var p EnumeratorParams
	var err error
	if p.NameUTF8, err = s.U64(); err != nil {
		return p, err
	}
	if p.Value, err = s.I64(); err != nil {
		return p, err
	}
	return p, nil
}

// ImplementedInterfaceParams records one interface a class implements.
type ImplementedInterfaceParams struct {
	ClassFunc        uint64
	Offset           int32
	ImplementedByK2  bool
}

// ReadImplementedInterfaceParams reads an ImplementedInterfaceParams in
// declared field order.
func ReadImplementedInterfaceParams(s *stream.Stream) (ImplementedInterfaceParams, error) {
	var p ImplementedInterfaceParams
	var err error
	if p.ClassFunc, err = s.U64(); err != nil {
		return p, err
	}
	if p.Offset, err = s.I32(); err != nil {
		return p, err
	}
	b, err := s.U8()
	if err != nil {
		return p, err
	}
	p.ImplementedByK2 = b != 0
	return p, nil
}

// ClassFunctionLinkInfo is the 16-byte fixed record binding a UFunction
// name to the code that creates it.
type ClassFunctionLinkInfo struct {
	CreateFuncPtr uint64
	FuncNameUTF8  uint64
}

// ReadClassFunctionLinkInfo reads a ClassFunctionLinkInfo in declared
// field order.
func ReadClassFunctionLinkInfo(s *stream.Stream) (ClassFunctionLinkInfo, error) {
	var p ClassFunctionLinkInfo
	var err error
	if p.CreateFuncPtr, err = s.U64(); err != nil {
		return p, err
	}
	if p.FuncNameUTF8, err = s.U64(); err != nil {
		return p, err
	}
	return p, nil
}
