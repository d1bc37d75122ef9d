package disasm

import "testing"

func TestCachedCallForm1(t *testing.T) {
	// mov rax, [rip+0x10] ; test rax, rax ; jne +2
	code := []byte{
		0x48, 0x8B, 0x05, 0x10, 0x00, 0x00, 0x00,
		0x48, 0x85, 0xC0,
		0x75, 0x02,
	}
	d := NewDecoder(code, 0x1000)

	cache, err := CachedCall(d)
	if err != nil {
		t.Fatalf("CachedCall: %v", err)
	}
	want := uint32(0x1000 + 7 + 0x10)
	if cache != want {
		t.Fatalf("cache = %#x, want %#x", cache, want)
	}
}

func TestCachedCallForm2(t *testing.T) {
	// cmp qword [rip+0x20], 0 ; jne +2
	code := []byte{
		0x48, 0x83, 0x3D, 0x20, 0x00, 0x00, 0x00, 0x00,
		0x75, 0x02,
	}
	d := NewDecoder(code, 0x2000)

	cache, err := CachedCall(d)
	if err != nil {
		t.Fatalf("CachedCall: %v", err)
	}
	want := uint32(0x2000 + 8 + 0x20)
	if cache != want {
		t.Fatalf("cache = %#x, want %#x", cache, want)
	}
}

func TestCachedCallRedirect(t *testing.T) {
	// call +0x50
	code := []byte{0xE8, 0x50, 0x00, 0x00, 0x00}
	d := NewDecoder(code, 0x3000)

	_, err := CachedCall(d)
	redirect, ok := err.(*Redirect)
	if !ok {
		t.Fatalf("err = %v (%T), want *Redirect", err, err)
	}
	want := uint32(0x3000 + 5 + 0x50)
	if redirect.Target != want {
		t.Fatalf("redirect target = %#x, want %#x", redirect.Target, want)
	}
}

func TestCachedCallUnrecognised(t *testing.T) {
	code := []byte{0x90} // nop
	d := NewDecoder(code, 0x4000)

	_, err := CachedCall(d)
	if err == nil {
		t.Fatal("CachedCall: expected error for unrecognised skeleton")
	}
	if _, ok := err.(*Redirect); ok {
		t.Fatal("CachedCall: nop misclassified as redirect")
	}
}
