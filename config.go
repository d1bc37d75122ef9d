// Package uerecover ties the analysis engine's components together: it
// opens a PE image, runs seed analysis, drains the discovery worklist to
// a fixed point, runs the second-pass backward walk, and reports the
// resulting artefact index. Everything below this package (image,
// stream, pattern, disasm, records, discovery, worklist, explorer,
// parser, seed) is reusable on its own; this package is the one place
// that wires them together for a CLI or a library caller.
package uerecover

import (
	"github.com/coldino-labs/uerecover/internal/log"
	"github.com/coldino-labs/uerecover/records"
)

// OutputMode selects how the CLI renders a Result.
type OutputMode string

const (
	OutputText OutputMode = "text"
	OutputJSON OutputMode = "json"
)

// Config holds everything Analyze needs beyond the image bytes
// themselves. The zero value is not ready to use; call DefaultConfig.
type Config struct {
	// InputPath is the PE file to analyse.
	InputPath string

	// EngineVersion overrides the version recovered from the image's
	// resource directory, for binaries that ship without one or with an
	// incorrect one. Nil means "use whatever the image reports".
	EngineVersion *records.Version

	// TextSection and RDataSection name the sections seed analysis and
	// record parsing scan and dereference into, respectively.
	TextSection  string
	RDataSection string

	// LogLevel filters the structured logger shared across every
	// component.
	LogLevel log.Level

	// Output selects the CLI's reporting format.
	Output OutputMode
}

// DefaultConfig returns the Config a bare `analyze <path>` invocation
// uses: default section names, warn-level logging, text output, no
// version override.
func DefaultConfig() Config {
	return Config{
		TextSection:  ".text",
		RDataSection: ".rdata",
		LogLevel:     log.LevelWarn,
		Output:       OutputText,
	}
}
