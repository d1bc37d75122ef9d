package explorer

import (
	"testing"

	"github.com/coldino-labs/uerecover/discovery"
	"github.com/coldino-labs/uerecover/records"
	"github.com/coldino-labs/uerecover/stream"
)

// fakeReader serves StreamAt out of a single flat byte buffer addressed by
// RVA directly (buffer offset == rva), enough to exercise pointer-array
// reads in isolation from the real image package.
type fakeReader struct {
	data []byte
}

func (r *fakeReader) StreamAt(rva uint32, autoAlign bool) (*stream.Stream, error) {
	s := stream.New(r.data, 0)
	return s.CloneAt(rva)
}

func putU64(buf []byte, off int, v uint64) {
	for i := 0; i < 8; i++ {
		buf[off+i] = byte(v >> (8 * i))
	}
}

func TestExplorePackageEnqueuesNameAndSingletons(t *testing.T) {
	data := make([]byte, 0x100)
	putU64(data, 0x40, 0xAAAA) // singleton[0]
	putU64(data, 0x48, 0xBBBB) // singleton[1]

	b := NewBuilders(&fakeReader{data: data})
	p := records.PackageParams{NameUTF8: 0x20, SingletonFuncArrayFn: 0x40, NumSingletons: 2}
	artefact := discovery.StructArtefact{Type: discovery.RecordPackageParams, Record: p}

	out := b.explorePackage(artefact)
	if len(out) != 3 {
		t.Fatalf("got %d discoveries, want 3", len(out))
	}
	str, ok := out[0].(discovery.StringDiscovery)
	if !ok || str.At != 0x20 {
		t.Fatalf("first discovery = %v, want string@0x20", out[0])
	}
	fn1 := out[1].(discovery.FunctionDiscovery)
	fn2 := out[2].(discovery.FunctionDiscovery)
	if fn1.At != 0xAAAA || fn2.At != 0xBBBB {
		t.Fatalf("singleton discoveries = %v, %v", fn1, fn2)
	}
	if fn1.Hint != discovery.HintFunction {
		t.Fatalf("hint = %v, want HintFunction", fn1.Hint)
	}
}

func TestExplorePropertySkipsBoolSetBitFunc(t *testing.T) {
	b := NewBuilders(&fakeReader{data: make([]byte, 0x10)})
	p := records.PropertyParams{Kind: records.KindBool}
	p.Tail.SetBitFuncPtr = 0x1234
	artefact := discovery.StructArtefact{Type: discovery.RecordPropertyParams, Record: p}

	out := b.exploreProperty(artefact)
	if len(out) != 0 {
		t.Fatalf("Bool property should yield no discoveries, got %v", out)
	}
}

func TestExplorePropertyClassFollowsBothOrders(t *testing.T) {
	b := NewBuilders(&fakeReader{data: make([]byte, 0x10)})
	p := records.PropertyParams{Kind: records.KindClass}
	p.Tail.ClassFuncPtr = 0x100
	p.Tail.MetaClassFuncPtr = 0x200
	artefact := discovery.StructArtefact{Type: discovery.RecordPropertyParams, Record: p}

	out := b.exploreProperty(artefact)
	if len(out) != 2 {
		t.Fatalf("got %d discoveries, want 2", len(out))
	}
	for _, d := range out {
		fd := d.(discovery.FunctionDiscovery)
		if fd.Hint != discovery.HintClass {
			t.Fatalf("hint = %v, want HintClass", fd.Hint)
		}
	}
}

func TestRegistryWarnsOnReRegistration(t *testing.T) {
	var warned int
	reg := NewRegistry(func(format string, args ...interface{}) { warned++ })
	reg.Register(discovery.RecordPackageParams, func(discovery.Artefact) []discovery.Discovery { return nil })
	if warned != 0 {
		t.Fatalf("first registration should not warn")
	}
	reg.Register(discovery.RecordPackageParams, func(discovery.Artefact) []discovery.Discovery { return nil })
	if warned != 1 {
		t.Fatalf("re-registration should warn once, got %d warnings", warned)
	}
}

func TestRegistryExploreDispatchesByRecordType(t *testing.T) {
	reg := NewRegistry(nil)
	called := false
	reg.Register(discovery.RecordEnumeratorParams, func(discovery.Artefact) []discovery.Discovery {
		called = true
		return nil
	})
	reg.Explore(discovery.StructArtefact{Type: discovery.RecordEnumeratorParams, Record: records.EnumeratorParams{}})
	if !called {
		t.Fatal("Explore did not dispatch to the registered explorer")
	}
}

func TestRegistryExploreDispatchesByParserKind(t *testing.T) {
	reg := NewRegistry(nil)
	var gotStatic, gotZConstruct bool
	reg.RegisterFunction(discovery.ParserStaticClass, func(discovery.Artefact) []discovery.Discovery {
		gotStatic = true
		return nil
	})
	reg.RegisterFunction(discovery.ParserZConstruct, func(discovery.Artefact) []discovery.Discovery {
		gotZConstruct = true
		return nil
	})

	reg.Explore(discovery.StaticClassFunction{})
	reg.Explore(discovery.ZConstructFunction{})

	if !gotStatic {
		t.Fatal("Explore did not dispatch StaticClassFunction to its registered explorer")
	}
	if !gotZConstruct {
		t.Fatal("Explore did not dispatch ZConstructFunction to its registered explorer")
	}
}

func TestRegistryExploreUnregisteredParserKindYieldsNil(t *testing.T) {
	reg := NewRegistry(nil)
	if out := reg.Explore(discovery.StaticClassFunction{}); out != nil {
		t.Fatalf("Explore with no registered explorer = %v, want nil", out)
	}
}

func TestExploreStaticClassFunctionFollowsStringsAndClasses(t *testing.T) {
	b := NewBuilders(&fakeReader{data: make([]byte, 0x10)})
	sc := discovery.StaticClassFunction{}
	sc.Args[0] = 0x100 // package name
	sc.Args[1] = 0x200 // class name
	sc.Args[3] = 0x300 // register_fn_ptr: must never be followed
	sc.Args[8] = 0x400 // config name
	sc.Args[12] = 0x500 // super class
	sc.Args[13] = 0x600 // within class

	out := b.exploreStaticClassFunction(sc)
	if len(out) != 5 {
		t.Fatalf("got %d discoveries, want 5 (register_fn_ptr must not be followed): %v", len(out), out)
	}

	for _, d := range out {
		if sd, ok := d.(discovery.StringDiscovery); ok {
			if sd.At != 0x100 && sd.At != 0x200 && sd.At != 0x400 {
				t.Fatalf("unexpected string discovery at %#x", sd.At)
			}
			if sd.Encoding != discovery.EncodingUTF16 {
				t.Fatalf("string discovery encoding = %v, want UTF16", sd.Encoding)
			}
		}
		if fd, ok := d.(discovery.FunctionDiscovery); ok {
			if fd.At != 0x500 && fd.At != 0x600 {
				t.Fatalf("unexpected function discovery at %#x", fd.At)
			}
			if fd.Parser != discovery.ParserStaticClass {
				t.Fatalf("function discovery parser = %v, want ParserStaticClass", fd.Parser)
			}
		}
	}
}

func TestExploreZConstructFunctionFollowsParamsRecord(t *testing.T) {
	b := NewBuilders(&fakeReader{data: make([]byte, 0x10)})
	zc := discovery.ZConstructFunction{Kind: discovery.KindClass, ParamsRecordRVA: 0x700}

	out := b.exploreZConstructFunction(zc)
	if len(out) != 1 {
		t.Fatalf("got %d discoveries, want 1", len(out))
	}
	sd, ok := out[0].(discovery.StructDiscovery)
	if !ok || sd.At != 0x700 || sd.Type != discovery.RecordClassParams {
		t.Fatalf("discovery = %v, want StructDiscovery{At: 0x700, Type: RecordClassParams}", out[0])
	}
}
