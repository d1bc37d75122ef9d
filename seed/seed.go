// Package seed implements the one-shot seed analysis pass (component I):
// a pattern sweep over .text that locates ZConstruct call sites, grouping
// and validating their callees to classify the five engine constructor
// functions before strict parsing begins.
package seed

import (
	"github.com/coldino-labs/uerecover/disasm"
	"github.com/coldino-labs/uerecover/pattern"
	"github.com/coldino-labs/uerecover/stream"
	"golang.org/x/arch/x86/x86asm"
)

// Reader is the narrow slice of image.File seed analysis needs.
type Reader interface {
	BytesOfSection(name string) (uint32, []byte, error)
	StreamAt(rva uint32, autoAlign bool) (*stream.Stream, error)
	FindCalls(targetRVA uint32, sectionName string) ([]uint32, error)
}

// ZConstructSeed is one match of the ZConstruct pattern: a function at
// FnRVA that calls the constructor at CallRVA with a params record at
// StructRVA.
type ZConstructSeed struct {
	FnRVA     uint32
	CallRVA   uint32
	StructRVA uint32
}

var prologuePattern = pattern.MustCompile("48 83 ec 28")

// Sweep scans textSection for the ZConstruct shape: SUB RSP, 0x28; a
// cached-call skeleton; LEA RDX, [rel32] (the params-record RVA); LEA
// RCX, [rel32]; CALL rel32 (the constructor RVA); MOV RAX, [rel32] (the
// epilogue cache reload). Every anchor that fully matches yields one
// ZConstructSeed; anchors that don't fit the shape are silently skipped,
// since SUB RSP, 0x28 also occurs in unrelated functions.
func Sweep(img Reader, textSection string) ([]ZConstructSeed, error) {
	base, data, err := img.BytesOfSection(textSection)
	if err != nil {
		return nil, err
	}

	var seeds []ZConstructSeed
	for _, off := range prologuePattern.FindAll(data) {
		rva := base + uint32(off)
		if s, ok := tryMatch(data, base, rva); ok {
			seeds = append(seeds, s)
		}
	}
	return seeds, nil
}

func tryMatch(data []byte, base, rva uint32) (ZConstructSeed, bool) {
	d := disasm.NewDecoder(data[rva-base:], rva)

	// Consume the SUB RSP, 0x28 anchor itself.
	if _, err := d.Next(); err != nil {
		return ZConstructSeed{}, false
	}

	if _, err := disasm.CachedCall(d); err != nil {
		return ZConstructSeed{}, false
	}

	rdxTarget, ok := expectLea(d, x86asm.RDX)
	if !ok {
		return ZConstructSeed{}, false
	}
	_, ok = expectLea(d, x86asm.RCX)
	if !ok {
		return ZConstructSeed{}, false
	}

	pos, instRVA := d.Mark()
	callInst, err := d.Next()
	if err != nil || callInst.Op != x86asm.CALL {
		d.Reset(pos, instRVA)
		return ZConstructSeed{}, false
	}
	rel, ok := callInst.Args[0].(x86asm.Rel)
	if !ok {
		return ZConstructSeed{}, false
	}
	callTarget := uint32(int64(instRVA) + int64(callInst.Len) + int64(rel))

	if !expectMovRaxRipRel(d) {
		return ZConstructSeed{}, false
	}

	return ZConstructSeed{FnRVA: rva, CallRVA: callTarget, StructRVA: rdxTarget}, true
}

func expectLea(d *disasm.Decoder, want x86asm.Reg) (uint32, bool) {
	pos, rva := d.Mark()
	inst, err := d.Next()
	if err != nil || inst.Op != x86asm.LEA {
		d.Reset(pos, rva)
		return 0, false
	}
	dst, ok := inst.Args[0].(x86asm.Reg)
	if !ok || dst != want {
		d.Reset(pos, rva)
		return 0, false
	}
	mem, ok := inst.Args[1].(x86asm.Mem)
	if !ok || mem.Base != x86asm.RIP {
		d.Reset(pos, rva)
		return 0, false
	}
	target := uint32(int64(rva) + int64(inst.Len) + mem.Disp)
	return target, true
}

func expectMovRaxRipRel(d *disasm.Decoder) bool {
	pos, rva := d.Mark()
	inst, err := d.Next()
	if err != nil || inst.Op != x86asm.MOV {
		d.Reset(pos, rva)
		return false
	}
	dst, ok := inst.Args[0].(x86asm.Reg)
	if !ok || dst != x86asm.RAX {
		d.Reset(pos, rva)
		return false
	}
	mem, ok := inst.Args[1].(x86asm.Mem)
	if !ok || mem.Base != x86asm.RIP {
		d.Reset(pos, rva)
		return false
	}
	return true
}
