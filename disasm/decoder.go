// Package disasm provides the stylised x86-64 decoding helpers the
// discovery engine needs: trampoline chains, function prologues, the
// "cached call" lazy-singleton skeleton, and argument-marshalling blocks
// (component D). Actual instruction decoding is delegated to
// golang.org/x/arch/x86/x86asm; this package never decodes opcodes itself,
// only recognises sequences of already-decoded instructions.
package disasm

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// Decoder is a forward-only cursor over a code buffer, tracking the RVA of
// the next instruction to decode.
type Decoder struct {
	code []byte
	pos  int
	rva  uint32
}

// NewDecoder returns a Decoder over code, whose first byte is at rva.
func NewDecoder(code []byte, rva uint32) *Decoder {
	return &Decoder{code: code, rva: rva}
}

// RVA returns the RVA of the next instruction to be decoded.
func (d *Decoder) RVA() uint32 { return d.rva }

// Mark returns an opaque position that Reset can later restore.
func (d *Decoder) Mark() (pos int, rva uint32) { return d.pos, d.rva }

// Reset restores a position previously returned by Mark.
func (d *Decoder) Reset(pos int, rva uint32) {
	d.pos = pos
	d.rva = rva
}

// ErrEndOfBuffer is returned when decoding runs past the end of the buffer.
var ErrEndOfBuffer = fmt.Errorf("disasm: end of buffer")

// Next decodes and consumes the instruction at the cursor.
func (d *Decoder) Next() (x86asm.Inst, error) {
	if d.pos >= len(d.code) {
		return x86asm.Inst{}, ErrEndOfBuffer
	}
	inst, err := x86asm.Decode(d.code[d.pos:], 64)
	if err != nil {
		return x86asm.Inst{}, fmt.Errorf("disasm: decode at rva %#x: %w", d.rva, err)
	}
	d.pos += inst.Len
	d.rva += uint32(inst.Len)
	return inst, nil
}

// Peek decodes the instruction at the cursor without consuming it.
func (d *Decoder) Peek() (x86asm.Inst, error) {
	pos, rva := d.Mark()
	inst, err := d.Next()
	d.Reset(pos, rva)
	return inst, err
}

// UnexpectedInstruction is returned by a stylised-sequence parser when it
// encounters an instruction that doesn't fit the expected shape at the
// given RVA.
type UnexpectedInstruction struct {
	RVA  uint32
	Inst x86asm.Inst
	Want string
}

func (e *UnexpectedInstruction) Error() string {
	return fmt.Sprintf("disasm: unexpected instruction %q at rva %#x (want %s)", e.Inst.String(), e.RVA, e.Want)
}

// rel32Target returns the absolute RVA target of a CALL/JMP rel32
// instruction decoded with its first byte at instRVA.
func rel32Target(inst x86asm.Inst, instRVA uint32) (uint32, bool) {
	rel, ok := inst.Args[0].(x86asm.Rel)
	if !ok {
		return 0, false
	}
	return uint32(int64(instRVA) + int64(inst.Len) + int64(rel)), true
}

// ripTarget returns the absolute RVA a RIP-relative memory operand
// addresses, given the instruction's own starting RVA.
func ripTarget(mem x86asm.Mem, inst x86asm.Inst, instRVA uint32) (uint32, bool) {
	if mem.Base != x86asm.RIP {
		return 0, false
	}
	return uint32(int64(instRVA) + int64(inst.Len) + mem.Disp), true
}

func isArgReg(r x86asm.Reg) (index int, ok bool) {
	switch r {
	case x86asm.RCX:
		return 0, true
	case x86asm.RDX:
		return 1, true
	case x86asm.R8:
		return 2, true
	case x86asm.R9:
		return 3, true
	}
	return 0, false
}

// argSlot is the sentinel slot base for register-passed arguments, so that
// slot = 0xFFFF - index sorts ahead of every stack-passed slot when sorted
// descending, matching the engine's own calling-convention-order encoding.
const argSlot = 0xFFFF
