package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"

	uerecover "github.com/coldino-labs/uerecover"
	ulog "github.com/coldino-labs/uerecover/internal/log"
	"github.com/coldino-labs/uerecover/records"
	"github.com/spf13/cobra"
)

var (
	jsonOutput   bool
	verbose      bool
	textSection  string
	rdataSection string
	engineMajor  uint16
	engineMinor  uint16
)

func prettyPrint(v interface{}) string {
	buf, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, buf, "", "\t"); err != nil {
		return string(buf)
	}
	return pretty.String()
}

func analyzeOne(filename string) {
	cfg := uerecover.DefaultConfig()
	cfg.InputPath = filename
	cfg.TextSection = textSection
	cfg.RDataSection = rdataSection
	if verbose {
		cfg.LogLevel = ulog.LevelDebug
	}
	if engineMajor != 0 || engineMinor != 0 {
		cfg.EngineVersion = &records.Version{Major: engineMajor, Minor: engineMinor}
	}
	if jsonOutput {
		cfg.Output = uerecover.OutputJSON
	}

	ctx, result, err := uerecover.Analyze(cfg)
	if err != nil {
		log.Printf("%s: %v", filename, err)
		return
	}
	defer ctx.Close()

	if cfg.Output == uerecover.OutputJSON {
		fmt.Println(prettyPrint(result))
		return
	}

	fmt.Printf("file:              %s\n", filename)
	fmt.Printf("engine version:    %v\n", result.VersionTuple)
	fmt.Printf("signed:            %v\n", result.Signed)
	if result.Signed {
		fmt.Printf("signer:            %s\n", result.SignerCommonName)
	}
	fmt.Printf("rich header hash:  %s\n", result.RichHeaderHash)
	fmt.Println("constructor RVAs:")
	for kind, rva := range result.ConstructorRVAs {
		fmt.Printf("  %-10s %#x\n", kind, rva)
	}
	fmt.Println("recovered by kind:")
	for kind, count := range result.SummaryByKind {
		fmt.Printf("  %-20s %d\n", kind, count)
	}
	fmt.Printf("backward-walk:     %d found, %d misses\n", result.BackfillFound, result.BackfillMisses)
}

func main() {
	var rootCmd = &cobra.Command{
		Use:   "uerecover",
		Short: "Recovers Unreal Engine reflection metadata from a compiled binary",
		Long:  "uerecover statically recovers UCLASS/USTRUCT/UENUM/UFUNCTION/package reflection metadata from a compiled Unreal Engine x86-64 binary",
	}

	var versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("uerecover 0.1.0")
		},
	}

	var analyzeCmd = &cobra.Command{
		Use:   "analyze [files...]",
		Short: "Analyze one or more binaries",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			for _, f := range args {
				analyzeOne(f)
			}
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	analyzeCmd.Flags().BoolVar(&jsonOutput, "json", false, "emit JSON instead of text")
	analyzeCmd.Flags().StringVar(&textSection, "text-section", ".text", "name of the executable code section")
	analyzeCmd.Flags().StringVar(&rdataSection, "rdata-section", ".rdata", "name of the read-only data section")
	analyzeCmd.Flags().Uint16Var(&engineMajor, "engine-major", 0, "override the detected engine major version")
	analyzeCmd.Flags().Uint16Var(&engineMinor, "engine-minor", 0, "override the detected engine minor version")

	rootCmd.AddCommand(versionCmd, analyzeCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
