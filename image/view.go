package image

import (
	"fmt"

	"github.com/coldino-labs/uerecover/internal/log"
	"github.com/coldino-labs/uerecover/pattern"
	"github.com/coldino-labs/uerecover/stream"
)

// ErrOutsideImage describes an RVA that does not belong to the loaded image
// at all. No function in this package returns it: SectionOf and StreamAt
// report every uncontained RVA with ErrNoSection.
var ErrOutsideImage = fmt.Errorf("image: rva lies below image base")

// ErrNoSection is the structural failure raised when an RVA does not lie
// inside exactly one section.
var ErrNoSection = fmt.Errorf("image: rva is not contained in any section")

// Open memory-maps the file at path and fully parses it, returning a ready
// to use Image. Equivalent to New + Parse.
func Open(path string, opts *Options) (*File, error) {
	f, err := New(path, opts)
	if err != nil {
		return nil, err
	}
	if err := f.Parse(); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// OpenBytes is Open for an in-memory buffer.
func OpenBytes(data []byte, opts *Options) (*File, error) {
	f, err := NewBytes(data, opts)
	if err != nil {
		return nil, err
	}
	if err := f.Parse(); err != nil {
		return nil, err
	}
	return f, nil
}

// ImageBase returns the absolute preferred load address of the image.
func (pe *File) ImageBase() uint64 {
	if pe.Is64 {
		return pe.NtHeader.OptionalHeader.(ImageOptionalHeader64).ImageBase
	}
	return uint64(pe.NtHeader.OptionalHeader.(ImageOptionalHeader32).ImageBase)
}

// SectionOf returns the name of the section containing rva. It returns an
// ErrNoSection error if rva is not contained in any section, including an
// rva below the first section.
func (pe *File) SectionOf(rva uint32) (string, error) {
	name := pe.getSectionNameByRva(rva)
	if name == "" {
		return "", fmt.Errorf("%w: rva=%#x", ErrNoSection, rva)
	}
	return name, nil
}

// StreamAt returns a Stream over the section containing rva, positioned at
// rva. autoAlign selects auto-align mode (used only for PropertyParams).
func (pe *File) StreamAt(rva uint32, autoAlign bool) (*stream.Stream, error) {
	sec := pe.getSectionByRva(rva)
	if sec == nil {
		return nil, fmt.Errorf("%w: rva=%#x", ErrNoSection, rva)
	}
	base := pe.adjustSectionAlignment(sec.Header.VirtualAddress)
	data := sec.Data(base, 0, pe)
	if autoAlign {
		return stream.NewAutoAligned(data, base).CloneAt(rva)
	}
	s := stream.New(data, base)
	return s.CloneAt(rva)
}

// BytesOfSection returns the base RVA and raw bytes of the named section.
func (pe *File) BytesOfSection(name string) (uint32, []byte, error) {
	for i := range pe.Sections {
		if pe.Sections[i].String() == name {
			base := pe.adjustSectionAlignment(pe.Sections[i].Header.VirtualAddress)
			return base, pe.Sections[i].Data(base, 0, pe), nil
		}
	}
	return 0, nil, fmt.Errorf("%w: no section named %q", ErrNoSection, name)
}

// FindPattern returns every RVA in the named section at which p matches.
func (pe *File) FindPattern(p pattern.Pattern, sectionName string) ([]uint32, error) {
	base, data, err := pe.BytesOfSection(sectionName)
	if err != nil {
		return nil, err
	}
	offsets := p.FindAll(data)
	out := make([]uint32, len(offsets))
	for i, off := range offsets {
		out[i] = base + uint32(off)
	}
	return out, nil
}

var callPattern = pattern.MustCompile("e8 ?? ?? ?? ??")

// FindCalls scans sectionName (".text" by default) for CALL rel32
// instructions whose decoded target equals targetRVA, returning the RVA of
// each such CALL instruction.
func (pe *File) FindCalls(targetRVA uint32, sectionName string) ([]uint32, error) {
	if sectionName == "" {
		sectionName = ".text"
	}
	base, data, err := pe.BytesOfSection(sectionName)
	if err != nil {
		return nil, err
	}
	var out []uint32
	for _, off := range callPattern.FindAll(data) {
		rel := int32(uint32(data[off+1]) | uint32(data[off+2])<<8 | uint32(data[off+3])<<16 | uint32(data[off+4])<<24)
		target := base + uint32(off) + 5 + uint32(rel)
		if target == targetRVA {
			out = append(out, base+uint32(off))
		}
	}
	return out, nil
}

// FindAlignedPointers scans sectionName (".rdata" by default) for 8-byte
// aligned 64-bit little-endian words equal to targetRVA (widened to a full
// VA by adding the image base, matching how pointers are actually stored).
func (pe *File) FindAlignedPointers(targetRVA uint32, sectionName string) ([]uint32, error) {
	if sectionName == "" {
		sectionName = ".rdata"
	}
	base, data, err := pe.BytesOfSection(sectionName)
	if err != nil {
		return nil, err
	}
	target := pe.ImageBase() + uint64(targetRVA)
	var out []uint32
	for off := 0; off+8 <= len(data); off += 8 {
		v := uint64(data[off]) | uint64(data[off+1])<<8 | uint64(data[off+2])<<16 | uint64(data[off+3])<<24 |
			uint64(data[off+4])<<32 | uint64(data[off+5])<<40 | uint64(data[off+6])<<48 | uint64(data[off+7])<<56
		if v == target {
			out = append(out, base+uint32(off))
		}
	}
	return out, nil
}

// VersionTuple returns the product version as up to four 16-bit components
// with trailing zero components trimmed, parsed from the "ProductVersion"
// string of the PE resource directory's StringFileInfo table. Returns nil
// if no such string is present.
func (pe *File) VersionTuple() []uint16 {
	vers, err := pe.ParseVersionResources()
	if err != nil || len(vers) == 0 {
		return nil
	}
	v, ok := vers["ProductVersion"]
	if !ok {
		return nil
	}
	return parseVersionString(v)
}

func parseVersionString(v string) []uint16 {
	var parts []uint16
	cur := uint32(0)
	any := false
	for i := 0; i <= len(v); i++ {
		if i == len(v) || v[i] == '.' || v[i] == ',' || v[i] == ' ' {
			if any {
				parts = append(parts, uint16(cur))
				cur = 0
				any = false
			}
			continue
		}
		if v[i] < '0' || v[i] > '9' {
			continue
		}
		cur = cur*10 + uint32(v[i]-'0')
		any = true
	}
	for len(parts) > 0 && parts[len(parts)-1] == 0 {
		parts = parts[:len(parts)-1]
	}
	return parts
}

// VersionString returns the dotted version string, or "" if absent.
func (pe *File) VersionString() string {
	vers, err := pe.ParseVersionResources()
	if err != nil {
		return ""
	}
	return vers["ProductVersion"]
}

// FileProperties returns the key/value string properties found in the PE
// resource directory's StringFileInfo table (CompanyName, ProductName,
// InternalName, ProductVersion, ...). Returns an empty, non-nil map if no
// version resource is present.
func (pe *File) FileProperties() map[string]string {
	vers, err := pe.ParseVersionResources()
	if err != nil {
		return map[string]string{}
	}
	return vers
}

// Signed reports whether the image carries an Authenticode PKCS#7
// signature in its certificate table.
func (pe *File) Signed() bool {
	return len(pe.Certificates.Raw) > 0
}

// SignerCommonName returns the subject of the Authenticode signing
// certificate, or "" if the image is unsigned or the certificate could not
// be parsed.
func (pe *File) SignerCommonName() string {
	return pe.Certificates.Info.Subject
}

// Logger exposes the image's configured logging helper so dependent
// packages (worklist, seed, disasm) can share a single sink.
func (pe *File) Logger() *log.Helper {
	return pe.logger
}
