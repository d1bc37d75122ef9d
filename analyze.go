package uerecover

import (
	"fmt"
	"os"

	"github.com/coldino-labs/uerecover/discovery"
	"github.com/coldino-labs/uerecover/explorer"
	"github.com/coldino-labs/uerecover/image"
	"github.com/coldino-labs/uerecover/internal/log"
	"github.com/coldino-labs/uerecover/internal/uerror"
	"github.com/coldino-labs/uerecover/parser"
	"github.com/coldino-labs/uerecover/records"
	"github.com/coldino-labs/uerecover/seed"
	"github.com/coldino-labs/uerecover/worklist"
)

// Context is the long-lived analysis context: the opened image, the
// version it was parsed against, the constructor-kind tables seed
// analysis produced, and the worklist they seeded. It is returned
// alongside Result so a caller that wants the full artefact graph (not
// just the summary) can keep working against it.
type Context struct {
	Config   Config
	Image    *image.File
	Version  records.Version
	Tables   *seed.Tables
	Worklist *worklist.Worklist

	helper *log.Helper
}

// Close releases the underlying image's memory-mapped file.
func (c *Context) Close() error {
	if c.Image == nil {
		return nil
	}
	return c.Image.Close()
}

// Result is the operator-facing snapshot of one analysis run.
type Result struct {
	VersionTuple     []uint16
	Signed           bool
	SignerCommonName string
	RichHeaderHash   string
	ConstructorRVAs  map[string]uint32
	SummaryByKind    map[string]int
	BackfillFound    int
	BackfillMisses   int
}

// Analyze opens the image named by cfg.InputPath, runs seed analysis
// (§4.I), drains the discovery worklist to a fixed point (§4.G), runs
// the second-pass backward walk (§4.K closing paragraph), and returns
// the long-lived Context plus an operator-facing Result summary.
func Analyze(cfg Config) (*Context, *Result, error) {
	logger := log.NewFilter(log.NewStdLogger(os.Stderr), log.FilterLevel(cfg.LogLevel))
	helper := log.NewHelper(logger)

	img, err := image.Open(cfg.InputPath, &image.Options{Logger: logger})
	if err != nil {
		return nil, nil, uerror.NewStructural("opening image", err)
	}

	version, err := resolveVersion(cfg, img, helper)
	if err != nil {
		img.Close()
		return nil, nil, err
	}

	tables, _, err := seed.Analyze(img, cfg.TextSection, cfg.RDataSection)
	if err != nil {
		img.Close()
		return nil, nil, uerror.NewStructural("seed analysis", err)
	}

	parserCtx := &parser.Context{
		Img:     img,
		Version: version,
		Seeds: parser.SeedTables{
			KindOfZConstructFn:  tables.KindOfZConstructFn,
			KindOfConstructorFn: tables.KindOfConstructorFn,
			KindOfParamsStruct:  tables.KindOfParamsStruct,
		},
	}

	registry := explorer.NewRegistry(func(format string, args ...interface{}) {
		helper.Warnf(format, args...)
	})
	explorer.NewBuilders(img).RegisterAll(registry)

	wl := worklist.New(parserCtx.Parse, registry.AsFunc())
	for kind, info := range tables.ByKind {
		for _, s := range info.Callers {
			_ = kind
			if err := wl.Enqueue(discovery.FunctionDiscovery{At: discovery.RVA(s.FnRVA), Parser: discovery.ParserZConstruct}); err != nil {
				img.Close()
				return nil, nil, uerror.NewCrossCheck("seeding ZConstruct discoveries", nil, err)
			}
		}
	}

	if err := wl.ProcessAll(); err != nil {
		img.Close()
		return nil, nil, fmt.Errorf("uerecover: draining worklist: %w", err)
	}

	backfillFound, backfillMisses, err := runBackfill(img, wl, cfg, helper)
	if err != nil {
		img.Close()
		return nil, nil, err
	}

	if err := wl.ProcessAll(); err != nil {
		img.Close()
		return nil, nil, fmt.Errorf("uerecover: draining worklist after backfill: %w", err)
	}

	ctx := &Context{
		Config:   cfg,
		Image:    img,
		Version:  version,
		Tables:   tables,
		Worklist: wl,
		helper:   helper,
	}

	result := &Result{
		VersionTuple:     img.VersionTuple(),
		Signed:           img.Signed(),
		SignerCommonName: img.SignerCommonName(),
		RichHeaderHash:   img.RichHeaderHash(),
		ConstructorRVAs:  constructorRVAs(tables),
		SummaryByKind:    wl.SummaryByKind(),
		BackfillFound:    backfillFound,
		BackfillMisses:   backfillMisses,
	}
	return ctx, result, nil
}

// resolveVersion picks cfg.EngineVersion if set, else the version
// recovered from the image's PE resource directory. A missing version
// resource is tolerated (logged, zero Version used): strict-parser kind
// cross-checks still work off the seed tables, which don't depend on the
// version; only PropertyParams's version-gated middle section does.
func resolveVersion(cfg Config, img *image.File, helper *log.Helper) (records.Version, error) {
	if cfg.EngineVersion != nil {
		return *cfg.EngineVersion, nil
	}
	tuple := img.VersionTuple()
	if len(tuple) < 2 {
		helper.Warnf("no usable version resource found in %s; assuming version 0.0, pass Config.EngineVersion to override", cfg.InputPath)
		return records.Version{}, nil
	}
	return records.Version{Major: tuple[0], Minor: tuple[1]}, nil
}

func constructorRVAs(t *seed.Tables) map[string]uint32 {
	out := make(map[string]uint32, len(t.ByKind))
	for kind, info := range t.ByKind {
		out[kind.String()] = info.RVA
	}
	return out
}

// runBackfill implements §4.K's second pass: every parsed
// StaticClassFunction artefact is expected to agree on CalledFnRVA; the
// backward walk seeds one further discovery per call site that matches
// the prologue shape, and reports misses as a diagnostic rather than
// failing the run.
func runBackfill(img *image.File, wl *worklist.Worklist, cfg Config, helper *log.Helper) (found, misses int, err error) {
	statics := wl.FunctionsOfKind(discovery.ParserStaticClass)
	if len(statics) == 0 {
		return 0, 0, nil
	}

	addrs := make([]uint32, 0, len(statics))
	for _, a := range statics {
		sc, ok := a.(discovery.StaticClassFunction)
		if !ok {
			continue
		}
		addrs = append(addrs, uint32(sc.CalledFnRVA))
	}
	calledFnAddr, err := seed.AssertSharedCalledFn(addrs)
	if err != nil {
		return 0, 0, uerror.NewCrossCheck("StaticClass callers agree on called_fn_addr", addrs[0], err)
	}

	discoveries, missRVAs, err := seed.BackfillStaticClass(img, calledFnAddr, discovery.ParserStaticClass, cfg.TextSection)
	if err != nil {
		return 0, 0, uerror.NewStructural("backward prologue walk", err)
	}
	for _, d := range discoveries {
		if err := wl.Enqueue(d); err != nil {
			return 0, 0, fmt.Errorf("uerecover: enqueueing backfilled discovery: %w", err)
		}
	}
	for _, rva := range missRVAs {
		helper.Warnf("backward prologue walk found no StaticClass prologue before call site %#x", rva)
	}
	return len(discoveries), len(missRVAs), nil
}
