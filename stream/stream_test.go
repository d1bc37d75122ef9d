package stream

import "testing"

func TestIntegerReads(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	s := New(data, 0x1000)

	u32, err := s.U32()
	if err != nil {
		t.Fatalf("U32: %v", err)
	}
	if u32 != 0x04030201 {
		t.Fatalf("U32 = %#x, want 0x04030201", u32)
	}
	if s.RVA() != 0x1004 {
		t.Fatalf("RVA = %#x, want 0x1004", s.RVA())
	}

	u32b, err := s.U32()
	if err != nil {
		t.Fatalf("U32 #2: %v", err)
	}
	if u32b != 0x08070605 {
		t.Fatalf("U32 #2 = %#x, want 0x08070605", u32b)
	}
}

func TestStrictMisalignedFails(t *testing.T) {
	data := []byte{0x00, 0x01, 0x02, 0x03, 0x04}
	s := New(data, 0)
	if err := s.Skip(1); err != nil {
		t.Fatalf("Skip: %v", err)
	}
	if _, err := s.U32(); err != ErrMisaligned {
		t.Fatalf("U32 err = %v, want ErrMisaligned", err)
	}
}

func TestAutoAlignAdvances(t *testing.T) {
	data := []byte{0xAA, 0xBB, 0xCC, 0xDD, 0x01, 0x02, 0x03, 0x04}
	s := NewAutoAligned(data, 0)
	if err := s.Skip(1); err != nil {
		t.Fatalf("Skip: %v", err)
	}
	v, err := s.U32()
	if err != nil {
		t.Fatalf("U32: %v", err)
	}
	if v != 0x04030201 {
		t.Fatalf("U32 = %#x, want 0x04030201", v)
	}
}

func TestUtf8ZT(t *testing.T) {
	data := []byte("/Script/Foo\x00garbage")
	s := New(data, 0)
	str, err := s.Utf8ZT("", 64)
	if err != nil {
		t.Fatalf("Utf8ZT: %v", err)
	}
	if str != "/Script/Foo" {
		t.Fatalf("str = %q", str)
	}
}

func TestUtf8ZTNoTerminator(t *testing.T) {
	data := []byte("abcdef")
	s := New(data, 0)
	if _, err := s.Utf8ZT("", 3); err != ErrNoTerminator {
		t.Fatalf("err = %v, want ErrNoTerminator", err)
	}
}

func TestUtf8ZTSafe(t *testing.T) {
	data := []byte("abcdef")
	s := New(data, 0)
	if _, ok := s.Utf8ZTSafe("", 3); ok {
		t.Fatal("expected ok=false")
	}
	if s.Pos() != 0 {
		t.Fatalf("pos = %d, want 0 (unchanged on failure)", s.Pos())
	}
}

func TestUtf16ZT(t *testing.T) {
	// "Hi" + NUL in UTF-16LE.
	data := []byte{'H', 0x00, 'i', 0x00, 0x00, 0x00}
	s := New(data, 0)
	str, err := s.Utf16ZT("", 64)
	if err != nil {
		t.Fatalf("Utf16ZT: %v", err)
	}
	if str != "Hi" {
		t.Fatalf("str = %q", str)
	}
}

func TestCloneAt(t *testing.T) {
	data := make([]byte, 16)
	s := New(data, 0x2000)
	c, err := s.CloneAt(0x2008)
	if err != nil {
		t.Fatalf("CloneAt: %v", err)
	}
	if c.RVA() != 0x2008 {
		t.Fatalf("RVA = %#x", c.RVA())
	}
	if _, err := s.CloneAt(0x3000); err == nil {
		t.Fatal("expected error for out-of-window rva")
	}
}
