package seed

import (
	"fmt"

	"github.com/coldino-labs/uerecover/discovery"
	"github.com/coldino-labs/uerecover/pattern"
)

// singletonPrologue matches MOV R11, RSP; SUB RSP, imm8 — the prologue
// shape StaticClass functions use, distinct from the cached-call
// skeleton's own SUB RSP, 0x28 anchor.
var singletonPrologue = pattern.MustCompile("4c 8b dc 48 83 ec ??")

const backwalkWindow = 0x140

// BackfillStaticClass implements the second pass of §4.K: every parsed
// StaticClassFunction artefact shares the same called_fn_addr (the
// singleton body the Tolerant parser eventually lands on). Starting from
// that shared address, every CALL site in .text is walked backward for
// the StaticClass prologue shape, seeding a StaticClass discovery at the
// first match found within the window. A miss is reported but is not
// fatal: some callers may be reached some other way already.
func BackfillStaticClass(img Reader, calledFnAddr uint32, parser discovery.FunctionParserKind, textSection string) ([]discovery.Discovery, []uint32, error) {
	base, data, err := img.BytesOfSection(textSection)
	if err != nil {
		return nil, nil, err
	}

	sites, err := img.FindCalls(calledFnAddr, textSection)
	if err != nil {
		return nil, nil, err
	}

	var found []discovery.Discovery
	var misses []uint32
	for _, site := range sites {
		off := int(site - base)
		at := singletonPrologue.FindLastBefore(data, off, backwalkWindow)
		if at < 0 {
			misses = append(misses, site)
			continue
		}
		found = append(found, discovery.FunctionDiscovery{
			At:     discovery.RVA(base + uint32(at)),
			Parser: parser,
			Hint:   discovery.HintNone,
		})
	}
	return found, misses, nil
}

// AssertSharedCalledFn verifies every StaticClassFunction's discovery
// process converges on a single called_fn_addr, as required before the
// backward walk is meaningful. Disagreement is fatal.
func AssertSharedCalledFn(addrs []uint32) (uint32, error) {
	if len(addrs) == 0 {
		return 0, fmt.Errorf("seed: no StaticClass called_fn_addr observed")
	}
	first := addrs[0]
	for _, a := range addrs[1:] {
		if a != first {
			return 0, fmt.Errorf("seed: StaticClass callers disagree on called_fn_addr: %#x vs %#x", first, a)
		}
	}
	return first, nil
}
