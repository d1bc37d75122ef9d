package disasm

import (
	"testing"

	"golang.org/x/arch/x86/x86asm"
)

func TestPrologueStackSaveAndSub(t *testing.T) {
	// mov r11, rsp ; sub rsp, 0x48
	code := []byte{0x4C, 0x8B, 0xDC, 0x48, 0x83, 0xEC, 0x48}
	d := NewDecoder(code, 0x1000)

	stackSize, saveReg, err := Prologue(d)
	if err != nil {
		t.Fatalf("Prologue: %v", err)
	}
	if stackSize != 0x48 {
		t.Fatalf("stackSize = %#x, want 0x48", stackSize)
	}
	if saveReg == nil || *saveReg != x86asm.R11 {
		t.Fatalf("saveReg = %v, want R11", saveReg)
	}
	if d.RVA() != 0x1000+uint32(len(code)) {
		t.Fatalf("RVA after prologue = %#x, want %#x", d.RVA(), 0x1000+len(code))
	}
}

func TestPrologueNoSaveReg(t *testing.T) {
	// sub rsp, 0x28
	code := []byte{0x48, 0x83, 0xEC, 0x28}
	d := NewDecoder(code, 0x2000)

	stackSize, saveReg, err := Prologue(d)
	if err != nil {
		t.Fatalf("Prologue: %v", err)
	}
	if stackSize != 0x28 {
		t.Fatalf("stackSize = %#x, want 0x28", stackSize)
	}
	if saveReg != nil {
		t.Fatalf("saveReg = %v, want nil", saveReg)
	}
}

func TestTrampolineChain(t *testing.T) {
	// jmp rel32 to +0x10 from end of this instruction.
	code := []byte{0xE9, 0x10, 0x00, 0x00, 0x00}
	d := NewDecoder(code, 0x3000)

	hops, target, err := Trampolines(d)
	if err != nil {
		t.Fatalf("Trampolines: %v", err)
	}
	if len(hops) != 1 || hops[0].Start != 0x3000 || hops[0].End != 0x3005 {
		t.Fatalf("hops = %+v, want [{0x3000 0x3005}]", hops)
	}
	wantTarget := uint32(0x3000 + 5 + 0x10)
	if target != wantTarget {
		t.Fatalf("target = %#x, want %#x", target, wantTarget)
	}
}

func TestTrampolineNoneWhenNotJump(t *testing.T) {
	code := []byte{0x90} // nop
	d := NewDecoder(code, 0x4000)
	hops, target, err := Trampolines(d)
	if err != nil {
		t.Fatalf("Trampolines: %v", err)
	}
	if len(hops) != 0 {
		t.Fatalf("hops = %v, want none", hops)
	}
	if target != 0x4000 {
		t.Fatalf("target = %#x, want 0x4000", target)
	}
}

func TestTrampolineMultiHopWithinWindow(t *testing.T) {
	// Two back-to-back jumps within the same decode window:
	//   0x5000: jmp 0x5010
	//   0x5010: jmp 0x5020 (zero bytes fill the gap up to the second jump)
	//   0x5020: nop (the real function body)
	code := make([]byte, 0x21)
	code[0] = 0xE9
	putRel32(code[1:5], int32(0x10-5))
	code[0x10] = 0xE9
	putRel32(code[0x11:0x15], int32(0x10-5))
	code[0x20] = 0x90

	d := NewDecoder(code, 0x5000)
	hops, target, err := Trampolines(d)
	if err != nil {
		t.Fatalf("Trampolines: %v", err)
	}
	if len(hops) != 2 {
		t.Fatalf("hops = %+v, want 2 hops", hops)
	}
	if hops[0].Start != 0x5000 || hops[0].End != 0x5005 {
		t.Fatalf("hops[0] = %+v, want {0x5000 0x5005}", hops[0])
	}
	if hops[1].Start != 0x5010 || hops[1].End != 0x5015 {
		t.Fatalf("hops[1] = %+v, want {0x5010 0x5015}", hops[1])
	}
	if target != 0x5020 {
		t.Fatalf("target = %#x, want 0x5020", target)
	}
	if d.RVA() != 0x5020 {
		t.Fatalf("decoder RVA after chain = %#x, want 0x5020", d.RVA())
	}
}

func putRel32(b []byte, v int32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
