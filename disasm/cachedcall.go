package disasm

import "golang.org/x/arch/x86/x86asm"

// Redirect is returned by CachedCall when the function turns out to be a
// plain redirect: its first instruction, in place of a cached-call
// skeleton, is a CALL rel32 to another function that should be parsed
// instead.
type Redirect struct {
	Target uint32
}

func (r *Redirect) Error() string { return "disasm: function redirects via CALL" }

// CachedCall recognises the two shapes of the engine's lazy-singleton
// "cached call" skeleton, immediately following the function prologue:
//
//	Form 1: MOV RAX, [cache] ; TEST RAX, RAX ; JNE ret_label
//	Form 2: CMP [cache], 0   ; JNZ ret_label
//
// It returns the RVA of the cache variable. If the very first instruction
// is CALL rel32, it returns a *Redirect error instead: the caller should
// re-enter the relevant parser at Target.
func CachedCall(d *Decoder) (cacheRVA uint32, err error) {
	pos, rva := d.Mark()
	inst, derr := d.Next()
	if derr != nil {
		return 0, &UnexpectedInstruction{RVA: rva, Want: "cached-call skeleton"}
	}

	if inst.Op == x86asm.CALL {
		if tgt, ok := rel32Target(inst, rva); ok {
			return 0, &Redirect{Target: tgt}
		}
	}

	// Form 1: MOV RAX, [cache]
	if inst.Op == x86asm.MOV {
		if dst, ok := inst.Args[0].(x86asm.Reg); ok && dst == x86asm.RAX {
			if mem, ok := inst.Args[1].(x86asm.Mem); ok {
				if cache, ok := ripTarget(mem, inst, rva); ok {
					testInst, terr := d.Next()
					if terr != nil || testInst.Op != x86asm.TEST {
						d.Reset(pos, rva)
						return 0, &UnexpectedInstruction{RVA: rva, Inst: testInst, Want: "TEST RAX, RAX"}
					}
					jneInst, jerr := d.Next()
					if jerr != nil || jneInst.Op != x86asm.JNE {
						d.Reset(pos, rva)
						return 0, &UnexpectedInstruction{RVA: rva, Inst: jneInst, Want: "JNE"}
					}
					return cache, nil
				}
			}
		}
	}

	// Form 2: CMP [cache], 0
	if inst.Op == x86asm.CMP {
		if mem, ok := inst.Args[0].(x86asm.Mem); ok {
			if cache, ok := ripTarget(mem, inst, rva); ok {
				if imm, ok := inst.Args[1].(x86asm.Imm); ok && imm == 0 {
					jnzInst, jerr := d.Next()
					if jerr != nil || jnzInst.Op != x86asm.JNE {
						d.Reset(pos, rva)
						return 0, &UnexpectedInstruction{RVA: rva, Inst: jnzInst, Want: "JNZ"}
					}
					return cache, nil
				}
			}
		}
	}

	d.Reset(pos, rva)
	return 0, &UnexpectedInstruction{RVA: rva, Inst: inst, Want: "cached-call skeleton"}
}
