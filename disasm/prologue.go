package disasm

import "golang.org/x/arch/x86/x86asm"

// TrampolineHop is a single JMP rel32 instruction consumed while resolving
// a trampoline chain. Its span covers only its own instruction bytes, never
// the bytes beyond it: a chain of N hops yields N of these, all ultimately
// resolving to the same final target.
type TrampolineHop struct {
	Start, End uint32
}

// Trampolines follows zero or more consecutive JMP rel32 instructions
// starting at the decoder's current position, continuing across hops for
// as long as each jump target lands back inside this decoder's own byte
// window. It returns one TrampolineHop per jump encountered, in order, and
// the RVA the chain ultimately resolves to. If the first instruction is not
// a JMP rel32, hops is empty and target is the decoder's starting RVA.
//
// A target that falls outside this decoder's window (a different section,
// or earlier in the same one) ends the loop early with the hops seen so
// far; the caller re-seats a fresh decoder at target to continue.
func Trampolines(d *Decoder) (hops []TrampolineHop, target uint32, err error) {
	base := d.rva - uint32(d.pos)
	target = d.rva
	for {
		pos, rva := d.Mark()
		inst, derr := d.Next()
		if derr != nil {
			d.Reset(pos, rva)
			return hops, rva, nil
		}
		if inst.Op != x86asm.JMP {
			d.Reset(pos, rva)
			return hops, rva, nil
		}
		tgt, ok := rel32Target(inst, rva)
		if !ok {
			d.Reset(pos, rva)
			return hops, rva, nil
		}
		hops = append(hops, TrampolineHop{Start: rva, End: d.rva})
		target = tgt

		offset := int64(tgt) - int64(base)
		if offset < 0 || offset >= int64(len(d.code)) {
			d.Reset(len(d.code), tgt)
			return hops, target, nil
		}
		d.Reset(int(offset), tgt)
	}
}

// Prologue recognises the stylised function prologue:
//  1. optional MOV R11, RSP
//  2. zero or more PUSH r64 and LEA r64, [mem], interleaved in any order
//  3. either SUB RSP, imm8/imm32, or the chkstk form
//     MOV EAX, imm32 ; CALL rel32 ; SUB RSP, RAX
//
// It returns the recorded stack size and, if step 1 matched, the
// stack-save register (always RSP's alias, i.e. R11 per the observed
// skeleton).
func Prologue(d *Decoder) (stackSize uint32, stackSaveReg *x86asm.Reg, err error) {
	// Step 1: optional MOV R11, RSP.
	if pos, rva := d.Mark(); true {
		inst, derr := d.Next()
		if derr == nil && inst.Op == x86asm.MOV {
			if dst, ok := inst.Args[0].(x86asm.Reg); ok && dst == x86asm.R11 {
				if src, ok := inst.Args[1].(x86asm.Reg); ok && src == x86asm.RSP {
					reg := x86asm.R11
					stackSaveReg = &reg
				}
			}
		}
		if stackSaveReg == nil {
			d.Reset(pos, rva)
		}
	}

	// Step 2: zero or more PUSH r64 / LEA r64,[mem].
	for {
		pos, rva := d.Mark()
		inst, derr := d.Next()
		if derr != nil {
			d.Reset(pos, rva)
			break
		}
		if inst.Op == x86asm.PUSH || inst.Op == x86asm.LEA {
			continue
		}
		d.Reset(pos, rva)
		break
	}

	// Step 3: SUB RSP, imm / chkstk form.
	pos, rva := d.Mark()
	inst, derr := d.Next()
	if derr != nil {
		return 0, nil, &UnexpectedInstruction{RVA: rva, Want: "SUB RSP, imm or chkstk prologue"}
	}
	if inst.Op == x86asm.SUB {
		if dst, ok := inst.Args[0].(x86asm.Reg); ok && dst == x86asm.RSP {
			if imm, ok := inst.Args[1].(x86asm.Imm); ok {
				return uint32(imm), stackSaveReg, nil
			}
		}
	}
	if inst.Op == x86asm.MOV {
		if dst, ok := inst.Args[0].(x86asm.Reg); ok && dst == x86asm.EAX {
			if _, ok := inst.Args[1].(x86asm.Imm); ok {
				callInst, cerr := d.Next()
				if cerr != nil || callInst.Op != x86asm.CALL {
					d.Reset(pos, rva)
					return 0, nil, &UnexpectedInstruction{RVA: rva, Inst: inst, Want: "chkstk CALL"}
				}
				subInst, serr := d.Next()
				if serr != nil || subInst.Op != x86asm.SUB {
					d.Reset(pos, rva)
					return 0, nil, &UnexpectedInstruction{RVA: rva, Inst: subInst, Want: "chkstk SUB RSP, RAX"}
				}
				imm, _ := inst.Args[1].(x86asm.Imm)
				return uint32(imm), stackSaveReg, nil
			}
		}
	}
	d.Reset(pos, rva)
	return 0, nil, &UnexpectedInstruction{RVA: rva, Inst: inst, Want: "SUB RSP, imm or chkstk prologue"}
}
