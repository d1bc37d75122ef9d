package worklist

import (
	"sort"
	"testing"

	"github.com/coldino-labs/uerecover/discovery"
)

// a tiny synthetic reference graph: three strings chained by discoveries
// registered as each prior one is "parsed", so the worklist must drain
// more than one generation to terminate.
func chainParser(data map[discovery.RVA]string, next map[discovery.RVA]discovery.RVA) Parser {
	return func(d discovery.Discovery) ([]discovery.Discovery, discovery.Artefact, error) {
		sd := d.(discovery.StringDiscovery)
		text := data[sd.At]
		artefact := discovery.StringArtefact{Start: sd.At, End: sd.At + discovery.RVA(len(text)+1), Text: text}
		var follow []discovery.Discovery
		if n, ok := next[sd.At]; ok {
			follow = append(follow, discovery.StringDiscovery{At: n})
		}
		return follow, artefact, nil
	}
}

func noopExplorer(discovery.Artefact) []discovery.Discovery { return nil }

func TestProcessAllDrainsChain(t *testing.T) {
	data := map[discovery.RVA]string{0x100: "a", 0x200: "b", 0x300: "c"}
	next := map[discovery.RVA]discovery.RVA{0x100: 0x200, 0x200: 0x300}

	w := New(chainParser(data, next), noopExplorer)
	if err := w.Enqueue(discovery.StringDiscovery{At: 0x100}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := w.ProcessAll(); err != nil {
		t.Fatalf("ProcessAll: %v", err)
	}
	if len(w.Found()) != 3 {
		t.Fatalf("found %d artefacts, want 3", len(w.Found()))
	}
	for _, rva := range []discovery.RVA{0x100, 0x200, 0x300} {
		if _, ok := w.StringAt(rva); !ok {
			t.Fatalf("missing string artefact at %#x", rva)
		}
	}
}

func TestEnqueueDropsSentinelAndFoundRVAs(t *testing.T) {
	data := map[discovery.RVA]string{0x100: "a"}
	w := New(chainParser(data, nil), noopExplorer)

	if err := w.Enqueue(discovery.StringDiscovery{At: discovery.NullRVA}); err != nil {
		t.Fatalf("Enqueue(null): %v", err)
	}
	if err := w.Enqueue(discovery.StringDiscovery{At: discovery.AllOnes}); err != nil {
		t.Fatalf("Enqueue(all-ones): %v", err)
	}
	if w.Pending() {
		t.Fatal("sentinel RVAs should never be queued")
	}

	if err := w.Enqueue(discovery.StringDiscovery{At: 0x100}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := w.ProcessAll(); err != nil {
		t.Fatalf("ProcessAll: %v", err)
	}
	// Re-enqueueing an RVA already in found must be a silent no-op.
	if err := w.Enqueue(discovery.StringDiscovery{At: 0x100}); err != nil {
		t.Fatalf("Enqueue(already found): %v", err)
	}
	if w.Pending() {
		t.Fatal("already-found RVA should not be re-queued")
	}
}

func TestEnqueueConflictIsFatal(t *testing.T) {
	w := New(chainParser(nil, nil), noopExplorer)
	if err := w.Enqueue(discovery.StringDiscovery{At: 0x100, Encoding: discovery.EncodingUTF8}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	err := w.Enqueue(discovery.StringDiscovery{At: 0x100, Encoding: discovery.EncodingUTF16})
	if err == nil {
		t.Fatal("expected a conflict error for disagreeing discoveries at the same rva")
	}
	if _, ok := err.(*ConflictError); !ok {
		t.Fatalf("err = %v (%T), want *ConflictError", err, err)
	}
}

func TestFunctionDiscoveryHintSpecialisation(t *testing.T) {
	w := New(chainParser(nil, nil), noopExplorer)
	hintless := discovery.FunctionDiscovery{At: 0x100, Parser: discovery.ParserTolerant, Hint: discovery.HintNone}
	hinted := discovery.FunctionDiscovery{At: 0x100, Parser: discovery.ParserTolerant, Hint: discovery.HintClass}

	if err := w.Enqueue(hintless); err != nil {
		t.Fatalf("Enqueue(hintless): %v", err)
	}
	if err := w.Enqueue(hinted); err != nil {
		t.Fatalf("Enqueue(hinted): replace toward more specific should not fail: %v", err)
	}
	// A second, different hint should now conflict with the now-hinted entry.
	other := discovery.FunctionDiscovery{At: 0x100, Parser: discovery.ParserTolerant, Hint: discovery.HintEnum}
	if err := w.Enqueue(other); err == nil {
		t.Fatal("expected conflict between two different non-empty hints")
	}
}

func TestProcessingOrderIndependent(t *testing.T) {
	// A small diamond-shaped reference graph: 0x100 -> {0x200, 0x300} -> 0x400.
	data := map[discovery.RVA]string{0x100: "root", 0x200: "left", 0x300: "right", 0x400: "leaf"}
	diamondParser := func(d discovery.Discovery) ([]discovery.Discovery, discovery.Artefact, error) {
		sd := d.(discovery.StringDiscovery)
		var follow []discovery.Discovery
		switch sd.At {
		case 0x100:
			follow = []discovery.Discovery{
				discovery.StringDiscovery{At: 0x200},
				discovery.StringDiscovery{At: 0x300},
			}
		case 0x200, 0x300:
			follow = []discovery.Discovery{discovery.StringDiscovery{At: 0x400}}
		}
		text := data[sd.At]
		return follow, discovery.StringArtefact{Start: sd.At, End: sd.At + 1, Text: text}, nil
	}

	run := func(opts ...Option) []string {
		w := New(diamondParser, noopExplorer, opts...)
		if err := w.Enqueue(discovery.StringDiscovery{At: 0x100}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
		if err := w.ProcessAll(); err != nil {
			t.Fatalf("ProcessAll: %v", err)
		}
		var texts []string
		for _, a := range w.Found() {
			texts = append(texts, a.(discovery.StringArtefact).Text)
		}
		sort.Strings(texts)
		return texts
	}

	lifo := run()
	fifo := run(FIFO())

	if len(lifo) != len(fifo) {
		t.Fatalf("lifo found %d artefacts, fifo found %d", len(lifo), len(fifo))
	}
	for i := range lifo {
		if lifo[i] != fifo[i] {
			t.Fatalf("lifo/fifo diverged: %v vs %v", lifo, fifo)
		}
	}
}
