package disasm

import (
	"reflect"
	"testing"
)

func TestArgMarshallingRegisterArgs(t *testing.T) {
	// mov rcx, 0x42 ; mov rdx, 0x43 ; call +0x30
	code := []byte{
		0x48, 0xB9, 0x42, 0, 0, 0, 0, 0, 0, 0,
		0x48, 0xBA, 0x43, 0, 0, 0, 0, 0, 0, 0,
		0xE8, 0x30, 0x00, 0x00, 0x00,
	}
	d := NewDecoder(code, 0x5000)

	args, target, err := ArgMarshalling(d, 0, nil)
	if err != nil {
		t.Fatalf("ArgMarshalling: %v", err)
	}
	if want := []uint64{0x42, 0x43}; !reflect.DeepEqual(args, want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
	wantTarget := uint32(0x5000 + 20 + 5 + 0x30)
	if target != wantTarget {
		t.Fatalf("target = %#x, want %#x", target, wantTarget)
	}
}

func TestArgMarshallingStackSlot(t *testing.T) {
	// mov dword [rsp+0x10], 5 ; call +9
	code := []byte{
		0xC7, 0x44, 0x24, 0x10, 0x05, 0x00, 0x00, 0x00,
		0xE8, 0x09, 0x00, 0x00, 0x00,
	}
	d := NewDecoder(code, 0x6000)

	args, target, err := ArgMarshalling(d, 0x30, nil)
	if err != nil {
		t.Fatalf("ArgMarshalling: %v", err)
	}
	if want := []uint64{5}; !reflect.DeepEqual(args, want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
	wantTarget := uint32(0x6000 + 8 + 5 + 0x09)
	if target != wantTarget {
		t.Fatalf("target = %#x, want %#x", target, wantTarget)
	}
}

func TestArgMarshallingNoArgs(t *testing.T) {
	// call +1 immediately, no marshalling at all.
	code := []byte{0xE8, 0x01, 0x00, 0x00, 0x00}
	d := NewDecoder(code, 0x7000)

	args, target, err := ArgMarshalling(d, 0, nil)
	if err != nil {
		t.Fatalf("ArgMarshalling: %v", err)
	}
	if len(args) != 0 {
		t.Fatalf("args = %v, want none", args)
	}
	wantTarget := uint32(0x7000 + 5 + 0x01)
	if target != wantTarget {
		t.Fatalf("target = %#x, want %#x", target, wantTarget)
	}
}
