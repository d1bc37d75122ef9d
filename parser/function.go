package parser

import (
	"fmt"

	"github.com/coldino-labs/uerecover/disasm"
	"github.com/coldino-labs/uerecover/discovery"
)

func (c *Context) parseFunction(d discovery.FunctionDiscovery) ([]discovery.Discovery, discovery.Artefact, error) {
	dec, err := c.decoderAt(uint32(d.At))
	if err != nil {
		return nil, nil, err
	}

	hops, target, err := disasm.Trampolines(dec)
	if err != nil {
		return nil, nil, err
	}
	if len(hops) > 0 {
		// This discovery's own RVA is always hops[0].Start: it becomes this
		// call's one Trampoline artefact, spanning only its own JMP. Every
		// later hop in the same chain is re-queued as its own
		// FunctionDiscovery so it resolves to its own correctly-spanned
		// Trampoline artefact (re-walking from there finds the same
		// remaining hops and the same final target); resolution of the
		// real function body continues via a follow-up discovery at the
		// final target, carrying the same parser and hint.
		follow := make([]discovery.Discovery, 0, len(hops))
		for _, h := range hops[1:] {
			follow = append(follow, discovery.FunctionDiscovery{At: discovery.RVA(h.Start), Parser: d.Parser, Hint: d.Hint})
		}
		follow = append(follow, discovery.FunctionDiscovery{At: discovery.RVA(target), Parser: d.Parser, Hint: d.Hint})
		return follow, discovery.Trampoline{
			Start:  discovery.RVA(hops[0].Start),
			End:    discovery.RVA(hops[0].End),
			Target: discovery.RVA(target),
		}, nil
	}

	switch d.Parser {
	case discovery.ParserStaticClass:
		return c.parseStaticClass(d.At, dec)
	case discovery.ParserZConstruct:
		return c.parseZConstructStrict(d.At, dec)
	case discovery.ParserTolerant:
		return c.parseTolerant(d.At, dec)
	default:
		return nil, nil, fmt.Errorf("parser: unrecognised function parser kind %s", d.Parser)
	}
}

// runBody executes the prologue + cached-call skeleton + argument
// marshalling sequence common to every function-body parser, starting
// from dec's current position (the function entry, trampolines already
// resolved). It returns the positional argument vector, the cache
// variable's RVA, and the constructor RVA the function ultimately calls.
func (c *Context) runBody(dec *disasm.Decoder) (args []uint64, cacheRVA uint32, calledRVA uint32, err error) {
	stackSize, saveReg, err := disasm.Prologue(dec)
	if err != nil {
		return nil, 0, 0, err
	}

	cacheRVA, err = disasm.CachedCall(dec)
	if err != nil {
		if redirect, ok := err.(*disasm.Redirect); ok {
			// Re-enter the parser at the redirect target: reposition the
			// decoder and retry the whole body from there.
			redirected, rerr := c.decoderAt(redirect.Target)
			if rerr != nil {
				return nil, 0, 0, rerr
			}
			return c.runBody(redirected)
		}
		return nil, 0, 0, err
	}

	args, calledRVA, err = disasm.ArgMarshalling(dec, stackSize, saveReg)
	if err != nil {
		return nil, 0, 0, err
	}
	return args, cacheRVA, calledRVA, nil
}

func (c *Context) parseStaticClass(at discovery.RVA, dec *disasm.Decoder) ([]discovery.Discovery, discovery.Artefact, error) {
	args, _, calledRVA, err := c.runBody(dec)
	if err != nil {
		return nil, c.unparsable(at, dec, "StaticClass"), nil
	}
	if len(args) != 14 {
		return nil, c.unparsable(at, dec, "StaticClass"), nil
	}
	var fixed [14]uint64
	copy(fixed[:], args)
	return nil, discovery.StaticClassFunction{Start: at, End: discovery.RVA(dec.RVA()), Args: fixed, CalledFnRVA: discovery.RVA(calledRVA)}, nil
}

func (c *Context) parseZConstructStrict(at discovery.RVA, dec *disasm.Decoder) ([]discovery.Discovery, discovery.Artefact, error) {
	args, cacheRVA, calledRVA, err := c.runBody(dec)
	if err != nil {
		return nil, c.unparsable(at, dec, "ZConstruct"), nil
	}
	if len(args) != 2 {
		return nil, c.unparsable(at, dec, "ZConstruct"), nil
	}

	fnKind, fnOK := c.Seeds.KindOfZConstructFn[uint32(at)]
	calledKind, calledOK := c.Seeds.KindOfConstructorFn[calledRVA]
	if !fnOK || !calledOK || fnKind != calledKind {
		return nil, nil, &KindMismatchError{FnRVA: uint32(at), CalledRVA: calledRVA, FnKind: fnKind, CalledKind: calledKind}
	}

	artefact := discovery.ZConstructFunction{
		Start:           at,
		End:             discovery.RVA(dec.RVA()),
		Kind:            fnKind,
		CalledCtorRVA:   discovery.RVA(calledRVA),
		CacheRVA:        discovery.RVA(cacheRVA),
		ParamsRecordRVA: discovery.RVA(args[1]),
	}
	// The params-record follow-up is the explorer registry's job (component
	// K), not the parser's: see explorer.Builders.exploreZConstructFunction.
	return nil, artefact, nil
}

func (c *Context) parseTolerant(at discovery.RVA, dec *disasm.Decoder) ([]discovery.Discovery, discovery.Artefact, error) {
	args, _, calledRVA, err := c.runBody(dec)
	if err != nil {
		return nil, c.unparsable(at, dec, "Tolerant"), nil
	}

	switch len(args) {
	case 2:
		// Re-decode from scratch: this decoder has already consumed the
		// body once just to count arguments, and the strict parser needs
		// to re-run the prologue/cached-call/marshalling sequence itself
		// to recover cache_rva and called_rva.
		fresh, derr := c.decoderAt(uint32(at))
		if derr != nil {
			return nil, nil, derr
		}
		return c.parseZConstructStrict(at, fresh)
	case 14:
		var fixed [14]uint64
		copy(fixed[:], args)
		return nil, discovery.StaticClassFunction{Start: at, End: discovery.RVA(dec.RVA()), Args: fixed, CalledFnRVA: discovery.RVA(calledRVA)}, nil
	default:
		return nil, c.unparsable(at, dec, "Tolerant"), nil
	}
}

func (c *Context) unparsable(at discovery.RVA, dec *disasm.Decoder, tag string) discovery.Artefact {
	return discovery.UnparsableFunction{Start: at, End: discovery.RVA(dec.RVA()), ParserTag: tag}
}
