// Package parser implements the function-body and record parsers that sit
// on top of disasm and records (component D's higher-level parsers, and
// component J), wired together as a worklist.Parser.
package parser

import (
	"fmt"

	"github.com/coldino-labs/uerecover/disasm"
	"github.com/coldino-labs/uerecover/discovery"
	"github.com/coldino-labs/uerecover/records"
	"github.com/coldino-labs/uerecover/stream"
)

// Reader is the narrow slice of image.File the parsers need.
type Reader interface {
	StreamAt(rva uint32, autoAlign bool) (*stream.Stream, error)
}

// SeedTables is the classification output of seed analysis (component I):
// three RVA lookup tables that make strict parsing of the five known
// constructor kinds unambiguous.
type SeedTables struct {
	KindOfZConstructFn map[uint32]discovery.ConstructorKind
	KindOfConstructorFn map[uint32]discovery.ConstructorKind
	KindOfParamsStruct  map[uint32]discovery.ConstructorKind
}

// Context bundles everything a parser needs beyond the Discovery itself.
type Context struct {
	Img     Reader
	Version records.Version
	Seeds   SeedTables
}

// KindMismatchError is fatal: it signals a corrupt seed index (the strict
// ZConstruct parser found the starting RVA and the called RVA disagreeing
// on constructor kind).
type KindMismatchError struct {
	FnRVA, CalledRVA uint32
	FnKind, CalledKind discovery.ConstructorKind
}

func (e *KindMismatchError) Error() string {
	return fmt.Sprintf("parser: kind mismatch: fn@%#x classified %s, called@%#x classified %s",
		e.FnRVA, e.FnKind, e.CalledRVA, e.CalledKind)
}

func (c *Context) decoderAt(rva uint32) (*disasm.Decoder, error) {
	s, err := c.Img.StreamAt(rva, false)
	if err != nil {
		return nil, err
	}
	data, err := s.Bytes(s.Remaining())
	if err != nil {
		return nil, err
	}
	return disasm.NewDecoder(data, rva), nil
}

// Parse dispatches a Discovery to the appropriate parser and returns the
// follow-up discoveries and the single resulting artefact, implementing
// worklist.Parser.
func (c *Context) Parse(d discovery.Discovery) ([]discovery.Discovery, discovery.Artefact, error) {
	switch v := d.(type) {
	case discovery.StringDiscovery:
		return c.parseString(v)
	case discovery.StructDiscovery:
		return c.parseStruct(v)
	case discovery.FunctionDiscovery:
		return c.parseFunction(v)
	default:
		return nil, nil, fmt.Errorf("parser: unrecognised discovery variant %T", d)
	}
}

func (c *Context) parseString(d discovery.StringDiscovery) ([]discovery.Discovery, discovery.Artefact, error) {
	s, err := c.Img.StreamAt(uint32(d.At), false)
	if err != nil {
		return nil, nil, err
	}
	start := s.RVA()
	var text string
	if d.Encoding == discovery.EncodingUTF16 {
		text, err = s.Utf16ZT(stream.DefaultAllowedCharset, 1024)
	} else {
		text, err = s.Utf8ZT(stream.DefaultAllowedCharset, 1024)
	}
	if err != nil {
		return nil, nil, err
	}
	end := s.RVA()
	return nil, discovery.StringArtefact{
		Start:    discovery.RVA(start),
		End:      discovery.RVA(end),
		Encoding: d.Encoding,
		Text:     text,
	}, nil
}
