package pattern

import "testing"

func TestCompileAndMatch(t *testing.T) {
	p, err := Compile("48 83 ec ?? 90")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	data := []byte{0x48, 0x83, 0xec, 0x28, 0x90, 0x00}
	if !p.MatchAt(data, 0) {
		t.Fatal("expected match at offset 0")
	}
	if p.MatchAt(data, 1) {
		t.Fatal("unexpected match at offset 1")
	}
}

func TestBitPattern(t *testing.T) {
	// high nibble fixed to 0x4, low nibble wildcard: matches REX prefixes 0x40-0x4f.
	p, err := Compile("[0100xxxx]")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	for b := 0x40; b <= 0x4f; b++ {
		if !p.MatchAt([]byte{byte(b)}, 0) {
			t.Fatalf("expected %#x to match", b)
		}
	}
	if p.MatchAt([]byte{0x50}, 0) {
		t.Fatal("0x50 should not match")
	}
}

func TestRoundTrip(t *testing.T) {
	corpus := []string{
		"48 83 ec 28",
		"?? ?? 90",
		"[0100xxxx] 8b ec",
		"e8 ?? ?? ?? ??",
	}
	for _, src := range corpus {
		p, err := Compile(src)
		if err != nil {
			t.Fatalf("Compile(%q): %v", src, err)
		}
		p2, err := Compile(p.String())
		if err != nil {
			t.Fatalf("Compile(String()) for %q: %v", src, err)
		}
		if !p.Equal(p2) {
			t.Fatalf("round trip mismatch for %q: %v != %v", src, p, p2)
		}
	}
}

func TestFindAll(t *testing.T) {
	p := MustCompile("90 90")
	data := []byte{0x00, 0x90, 0x90, 0x00, 0x90, 0x90, 0x90}
	got := p.FindAll(data)
	want := []int{1, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestFindLastBefore(t *testing.T) {
	p := MustCompile("cc")
	data := []byte{0xcc, 0x00, 0x00, 0xcc, 0x00, 0x00, 0x00}
	if got := p.FindLastBefore(data, 7, 10); got != 3 {
		t.Fatalf("got %d, want 3", got)
	}
	if got := p.FindLastBefore(data, 3, 2); got != -1 {
		t.Fatalf("got %d, want -1 (out of window)", got)
	}
}
