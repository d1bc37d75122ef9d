package parser

import (
	"testing"

	"github.com/coldino-labs/uerecover/discovery"
	"github.com/coldino-labs/uerecover/records"
	"github.com/coldino-labs/uerecover/stream"
)

type fakeReader struct {
	base uint32
	data []byte
}

func (r *fakeReader) StreamAt(rva uint32, autoAlign bool) (*stream.Stream, error) {
	s := stream.New(r.data, r.base)
	if autoAlign {
		s = stream.NewAutoAligned(r.data, r.base)
	}
	return s.CloneAt(rva)
}

func appendU32(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendU64(buf []byte, v uint64) []byte {
	b := buf
	for i := 0; i < 8; i++ {
		b = append(b, byte(v>>(8*i)))
	}
	return b
}

// buildStaticClassBody assembles: sub rsp,0x50 ; cached-call Form1 ;
// mov rcx/rdx/r8/r9, imm64 (args 1-4) ; ten mov dword [rsp+disp], imm32
// (args 5-14) ; call rel32, at the given rva.
func buildStaticClassBody(rva uint32, callTarget uint32) []byte {
	var code []byte
	code = append(code, 0x48, 0x83, 0xEC, 0x50) // sub rsp, 0x50

	// mov rax, [rip+0x10] ; test rax,rax ; jne +2
	code = append(code, 0x48, 0x8B, 0x05)
	code = appendU32(code, 0x10)
	code = append(code, 0x48, 0x85, 0xC0)
	code = append(code, 0x75, 0x02)

	regOps := []byte{0xB9, 0xBA} // mov rcx,imm64 / mov rdx,imm64 (REX 0x48)
	for i, op := range regOps {
		code = append(code, 0x48, op)
		code = appendU64(code, uint64(i+1))
	}
	r8r9 := []byte{0xB8, 0xB9} // mov r8,imm64 / mov r9,imm64 (REX 0x49)
	for i, op := range r8r9 {
		code = append(code, 0x49, op)
		code = appendU64(code, uint64(i+3))
	}

	for i := 1; i <= 10; i++ {
		disp := byte(0x8 * i)
		code = append(code, 0xC7, 0x44, 0x24, disp)
		code = appendU32(code, uint32(4+i))
	}

	// call rel32
	code = append(code, 0xE8)
	instRVA := rva + uint32(len(code))
	rel := int32(callTarget) - int32(instRVA) - 5
	code = appendU32(code, uint32(rel))

	return code
}

func TestParseStaticClassFourteenArgs(t *testing.T) {
	rva := uint32(0x1000)
	callTarget := uint32(0x9000)
	code := buildStaticClassBody(rva, callTarget)

	img := &fakeReader{base: rva, data: code}
	c := &Context{Img: img}

	dec, err := c.decoderAt(rva)
	if err != nil {
		t.Fatalf("decoderAt: %v", err)
	}
	_, artefact, err := c.parseStaticClass(discovery.RVA(rva), dec)
	if err != nil {
		t.Fatalf("parseStaticClass: %v", err)
	}
	sc, ok := artefact.(discovery.StaticClassFunction)
	if !ok {
		t.Fatalf("artefact = %T, want StaticClassFunction", artefact)
	}
	for i := 0; i < 14; i++ {
		if sc.Args[i] != uint64(i+1) {
			t.Fatalf("Args[%d] = %d, want %d", i, sc.Args[i], i+1)
		}
	}
}

func TestParseFunctionTrampolineSpanAndTarget(t *testing.T) {
	rva := uint32(0x6000)
	targetRVA := rva + 5 + 0x10 // jmp rel32 +0x10
	code := []byte{0xE9, 0x10, 0x00, 0x00, 0x00}

	img := &fakeReader{base: rva, data: code}
	c := &Context{Img: img}

	follow, artefact, err := c.parseFunction(discovery.FunctionDiscovery{At: discovery.RVA(rva), Parser: discovery.ParserStaticClass})
	if err != nil {
		t.Fatalf("parseFunction: %v", err)
	}
	tr, ok := artefact.(discovery.Trampoline)
	if !ok {
		t.Fatalf("artefact = %T, want Trampoline", artefact)
	}
	if tr.Start != discovery.RVA(rva) {
		t.Fatalf("Start = %#x, want %#x", tr.Start, rva)
	}
	if tr.End != discovery.RVA(rva+5) {
		t.Fatalf("End = %#x, want %#x (just past the JMP, not the target)", tr.End, rva+5)
	}
	if tr.Target != discovery.RVA(targetRVA) {
		t.Fatalf("Target = %#x, want %#x", tr.Target, targetRVA)
	}
	if len(follow) != 1 {
		t.Fatalf("follow = %v, want exactly one follow-up at the target", follow)
	}
	fd, ok := follow[0].(discovery.FunctionDiscovery)
	if !ok || fd.At != discovery.RVA(targetRVA) || fd.Parser != discovery.ParserStaticClass {
		t.Fatalf("follow[0] = %+v, want FunctionDiscovery at target with ParserStaticClass", follow[0])
	}
}

func TestParseStringUtf8(t *testing.T) {
	data := append([]byte("Hello"), 0x00)
	img := &fakeReader{base: 0x2000, data: data}
	c := &Context{Img: img}

	_, artefact, err := c.parseString(discovery.StringDiscovery{At: 0x2000, Encoding: discovery.EncodingUTF8})
	if err != nil {
		t.Fatalf("parseString: %v", err)
	}
	sa := artefact.(discovery.StringArtefact)
	if sa.Text != "Hello" {
		t.Fatalf("Text = %q, want Hello", sa.Text)
	}
}

func TestParseStructPackageParams(t *testing.T) {
	var buf []byte
	buf = appendU64(buf, 0x10)
	buf = appendU64(buf, 0x20)
	buf = appendU32(buf, 3)
	buf = appendU32(buf, 0)
	buf = appendU32(buf, 0xAAAA)
	buf = appendU32(buf, 0xBBBB)

	img := &fakeReader{base: 0x3000, data: buf}
	c := &Context{Img: img}

	_, artefact, err := c.parseStruct(discovery.StructDiscovery{At: 0x3000, Type: discovery.RecordPackageParams})
	if err != nil {
		t.Fatalf("parseStruct: %v", err)
	}
	sa := artefact.(discovery.StructArtefact)
	p := sa.Record.(records.PackageParams)
	if p.NumSingletons != 3 {
		t.Fatalf("NumSingletons = %d, want 3", p.NumSingletons)
	}
}

func TestParseZConstructStrictKindMismatchFatal(t *testing.T) {
	rva := uint32(0x4000)
	callTarget := uint32(0x5000)

	var code []byte
	code = append(code, 0x48, 0x83, 0xEC, 0x28) // sub rsp, 0x28
	code = append(code, 0x48, 0x8B, 0x05)
	code = appendU32(code, 0x10)
	code = append(code, 0x48, 0x85, 0xC0)
	code = append(code, 0x75, 0x02)
	// lea rcx, [rip+disp] ; lea rdx, [rip+disp]
	code = append(code, 0x48, 0x8D, 0x0D)
	code = appendU32(code, 0x100)
	code = append(code, 0x48, 0x8D, 0x15)
	code = appendU32(code, 0x200)
	code = append(code, 0xE8)
	instRVA := rva + uint32(len(code))
	rel := int32(callTarget) - int32(instRVA) - 5
	code = appendU32(code, uint32(rel))

	img := &fakeReader{base: rva, data: code}
	c := &Context{
		Img: img,
		Seeds: SeedTables{
			KindOfZConstructFn: map[uint32]discovery.ConstructorKind{rva: discovery.KindClass},
			KindOfConstructorFn: map[uint32]discovery.ConstructorKind{callTarget: discovery.KindStruct},
		},
	}

	dec, err := c.decoderAt(rva)
	if err != nil {
		t.Fatalf("decoderAt: %v", err)
	}
	_, _, err = c.parseZConstructStrict(discovery.RVA(rva), dec)
	if err == nil {
		t.Fatal("expected a kind-mismatch error")
	}
	if _, ok := err.(*KindMismatchError); !ok {
		t.Fatalf("err = %v (%T), want *KindMismatchError", err, err)
	}
}
