package uerecover

import (
	"testing"

	"github.com/coldino-labs/uerecover/discovery"
	"github.com/coldino-labs/uerecover/seed"
)

func TestConstructorRVAs(t *testing.T) {
	tables := &seed.Tables{
		ByKind: map[discovery.ConstructorKind]seed.ConstructorInfo{
			discovery.KindPackage: {RVA: 0x1000},
			discovery.KindClass:   {RVA: 0x2000},
		},
	}

	got := constructorRVAs(tables)
	if got["Package"] != 0x1000 {
		t.Errorf("ConstructorRVAs[Package] = %#x, want 0x1000", got["Package"])
	}
	if got["Class"] != 0x2000 {
		t.Errorf("ConstructorRVAs[Class] = %#x, want 0x2000", got["Class"])
	}
	if len(got) != 2 {
		t.Errorf("len(ConstructorRVAs) = %d, want 2", len(got))
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.TextSection != ".text" {
		t.Errorf("TextSection = %q, want .text", cfg.TextSection)
	}
	if cfg.RDataSection != ".rdata" {
		t.Errorf("RDataSection = %q, want .rdata", cfg.RDataSection)
	}
	if cfg.Output != OutputText {
		t.Errorf("Output = %v, want OutputText", cfg.Output)
	}
	if cfg.EngineVersion != nil {
		t.Error("EngineVersion: want nil by default")
	}
}
