package disasm

import (
	"sort"

	"golang.org/x/arch/x86/x86asm"
)

// Arg is a single recovered call argument before positional sorting.
type Arg struct {
	Value uint64
	Size  int
	Slot  int64
}

func argRegIndex(r x86asm.Reg) (int, bool) { return isArgReg(r) }

func memBaseIs(mem x86asm.Mem, reg x86asm.Reg) bool {
	return mem.Base == reg && mem.Index == 0
}

// ArgMarshalling parses the argument-marshalling block that follows a
// cached-call skeleton's branch, per the instruction table in the
// specification, until the terminating CALL rel32. It returns the
// recovered arguments in calling-convention order (entries with a negative
// slot are dropped) and the RVA the call targets.
func ArgMarshalling(d *Decoder, stackSize uint32, stackSaveReg *x86asm.Reg) ([]uint64, uint32, error) {
	regs := map[x86asm.Reg]uint64{}
	regs[x86asm.RSP] = fakeStackBottom
	if stackSaveReg != nil {
		regs[*stackSaveReg] = fakeStackBottom + uint64(stackSize)
	}

	var emitted []Arg

	for {
		pos, rva := d.Mark()
		inst, err := d.Next()
		if err != nil {
			return nil, 0, &UnexpectedInstruction{RVA: rva, Want: "argument marshalling instruction"}
		}

		switch inst.Op {
		case x86asm.CALL:
			target, ok := rel32Target(inst, rva)
			if !ok {
				return nil, 0, &UnexpectedInstruction{RVA: rva, Inst: inst, Want: "CALL rel32"}
			}
			return sortArgs(emitted), target, nil

		case x86asm.LEA:
			dst, ok := inst.Args[0].(x86asm.Reg)
			if !ok {
				return nil, 0, &UnexpectedInstruction{RVA: rva, Inst: inst, Want: "LEA r64, [mem]"}
			}
			mem, ok := inst.Args[1].(x86asm.Mem)
			if !ok {
				return nil, 0, &UnexpectedInstruction{RVA: rva, Inst: inst, Want: "LEA r64, [mem]"}
			}
			target, ok := ripTarget(mem, inst, rva)
			if !ok {
				return nil, 0, &UnexpectedInstruction{RVA: rva, Inst: inst, Want: "LEA r64, [rip+disp]"}
			}
			regs[dst] = uint64(target)
			if idx, ok := argRegIndex(dst); ok {
				emitted = append(emitted, Arg{Value: uint64(target), Size: 8, Slot: int64(argSlot - idx)})
				continue
			}
			// Expect an immediately-following MOV [R11+disp], RAX.
			pos2, rva2 := d.Mark()
			next, nerr := d.Next()
			if nerr != nil || next.Op != x86asm.MOV {
				d.Reset(pos2, rva2)
				return nil, 0, &UnexpectedInstruction{RVA: rva2, Want: "MOV [R11+disp], RAX following LEA"}
			}
			mem2, ok := next.Args[0].(x86asm.Mem)
			if !ok || stackSaveReg == nil || !memBaseIs(mem2, *stackSaveReg) {
				return nil, 0, &UnexpectedInstruction{RVA: rva2, Inst: next, Want: "MOV [R11+disp], RAX"}
			}
			src, ok := next.Args[1].(x86asm.Reg)
			if !ok || src != x86asm.RAX {
				return nil, 0, &UnexpectedInstruction{RVA: rva2, Inst: next, Want: "MOV [R11+disp], RAX"}
			}
			emitted = append(emitted, Arg{Value: uint64(target), Size: 8, Slot: -mem2.Disp})

		case x86asm.MOV:
			dstMem, dstIsMem := inst.Args[0].(x86asm.Mem)
			dstReg, dstIsReg := inst.Args[0].(x86asm.Reg)

			if dstIsMem {
				var slot int64
				var width int
				switch {
				case stackSaveReg != nil && memBaseIs(dstMem, *stackSaveReg):
					slot = -dstMem.Disp
					width = 8
				case memBaseIs(dstMem, x86asm.RSP):
					slot = int64(stackSize) - dstMem.Disp
					width = 8
				default:
					return nil, 0, &UnexpectedInstruction{RVA: rva, Inst: inst, Want: "MOV [R11|RSP+disp], ..."}
				}
				if imm, ok := inst.Args[1].(x86asm.Imm); ok {
					// declared width distinguishes dword vs qword immediate stores.
					if inst.DataSize == 32 {
						width = 4
						emitted = append(emitted, Arg{Value: uint64(int64(int32(imm))), Size: width, Slot: slot})
					} else {
						emitted = append(emitted, Arg{Value: uint64(imm), Size: 8, Slot: slot})
					}
					continue
				}
				if src, ok := inst.Args[1].(x86asm.Reg); ok {
					emitted = append(emitted, Arg{Value: regs[src], Size: width, Slot: slot})
					continue
				}
				return nil, 0, &UnexpectedInstruction{RVA: rva, Inst: inst, Want: "MOV [mem], imm|reg"}
			}

			if dstIsReg {
				if imm, ok := inst.Args[1].(x86asm.Imm); ok {
					regs[dstReg] = uint64(imm)
					if idx, ok := argRegIndex(dstReg); ok {
						emitted = append(emitted, Arg{Value: uint64(imm), Size: 8, Slot: int64(argSlot - idx)})
					}
					continue
				}
			}
			return nil, 0, &UnexpectedInstruction{RVA: rva, Inst: inst, Want: "MOV r64, imm64"}

		default:
			_ = pos
			return nil, 0, &UnexpectedInstruction{RVA: rva, Inst: inst, Want: "argument marshalling instruction or CALL"}
		}
	}
}

// fakeStackBottom is an arbitrary non-zero sentinel base used to initialise
// the simulated RSP/stack-save register; only displacements relative to it
// are meaningful, never its absolute value.
const fakeStackBottom = 0x1000000

func sortArgs(args []Arg) []uint64 {
	filtered := make([]Arg, 0, len(args))
	for _, a := range args {
		if a.Slot >= 0 {
			filtered = append(filtered, a)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].Slot > filtered[j].Slot })
	out := make([]uint64, len(filtered))
	for i, a := range filtered {
		out[i] = a.Value
	}
	return out
}
