package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/perf-analysis/fieldaccess/internal/histogram"
	"github.com/perf-analysis/fieldaccess/internal/service"
	"github.com/perf-analysis/fieldaccess/internal/statistics"
	"github.com/perf-analysis/fieldaccess/internal/storage"
	"github.com/perf-analysis/fieldaccess/pkg/config"
)

var (
	// Analyze command flags
	profilePath      string
	metadataPath     string
	localMode        bool
	outPath          string
	printStats       bool
	verifyVerbose    bool
	typePrefixFilter []string
	onlyRecords      bool
	callstackFilter  []string
	flamegraphOut    bool
	limit            int
	dumpUnresolved   bool
	persist          bool
	workers          int
	topTypes         int
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Build per-field access histograms from an allocation profile",
	Long: `Analyze resolves the type of every allocation record, spreads its byte
access histogram over the fields of that type and merges records that share
a callstack.

The profile is a JSON, YAML or msgpack file (optionally .gz or .zst) with
one record per allocation callstack. Paths may be storage:// URIs.`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	binName := BinName()
	analyzeCmd.Example = `  # Dump every histogram as YAML-like text
  ` + binName + ` analyze --profile allocs.json --metadata types.yaml --out result.txt

  # Flame graph lines of the ten hottest callstacks, records only
  ` + binName + ` analyze --profile allocs.json.zst --metadata types.toml --flamegraph --limit 10 --only-records --out flame.txt

  # Element types only, no container synthesis
  ` + binName + ` analyze --profile allocs.json --metadata types.yaml --local --stats`

	f := analyzeCmd.Flags()
	f.StringVarP(&profilePath, "profile", "i", "", "Allocation profile file (required)")
	f.StringVarP(&metadataPath, "metadata", "m", "", "Type metadata snapshot (default from config)")
	f.BoolVar(&localMode, "local", false, "Resolve containers to their element type only")
	f.StringVarP(&outPath, "out", "o", "", "Output file for the histogram dump")
	f.BoolVar(&printStats, "stats", false, "Print build statistics")
	f.BoolVar(&verifyVerbose, "verify-verbose", false, "Log every tree that fails verification")
	f.StringSliceVar(&typePrefixFilter, "type-prefix-filter", nil, "Keep only types starting with one of these prefixes")
	f.BoolVar(&onlyRecords, "only-records", false, "Keep only record (struct, class, union) types")
	f.StringSliceVar(&callstackFilter, "callstack-filter", nil, "Keep only callstacks containing one of these functions")
	f.BoolVar(&flamegraphOut, "flamegraph", false, "Write collapsed flame graph lines instead of the tree dump")
	f.IntVar(&limit, "limit", -1, "Number of entries to write, negative for all")
	f.BoolVar(&dumpUnresolved, "dump-unresolved-callstacks", false, "Print callstacks whose type could not be resolved")
	f.BoolVar(&persist, "persist", false, "Store the run in the database")
	f.IntVar(&workers, "workers", 0, "Resolution workers (default from config)")
	f.IntVar(&topTypes, "top", 10, "Number of types in the summary")

	_ = analyzeCmd.MarkFlagRequired("profile")
}

// applyAnalyzeFlags overrides the loaded configuration with the flags the
// user set explicitly.
func applyAnalyzeFlags(cmd *cobra.Command, c *config.Config) error {
	f := cmd.Flags()
	if localMode {
		c.Resolver.Mode = "local"
	}
	if f.Changed("out") {
		c.Output.Path = outPath
	}
	if f.Changed("stats") {
		c.Output.Stats = printStats
	}
	if f.Changed("flamegraph") {
		c.Output.Flamegraph = flamegraphOut
	}
	if f.Changed("limit") {
		c.Output.Limit = limit
	}
	if f.Changed("verify-verbose") {
		c.Histogram.VerifyVerbose = verifyVerbose
	}
	if f.Changed("type-prefix-filter") {
		c.Histogram.TypePrefixFilter = typePrefixFilter
	}
	if f.Changed("callstack-filter") {
		c.Histogram.CallstackFilter = callstackFilter
	}
	if f.Changed("only-records") {
		c.Histogram.OnlyRecords = onlyRecords
	}
	if f.Changed("dump-unresolved-callstacks") {
		c.Histogram.DumpUnresolvedCallstacks = dumpUnresolved
	}
	if f.Changed("workers") {
		c.Histogram.Workers = workers
	}
	return c.Validate()
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	log := GetLogger()
	if err := applyAnalyzeFlags(cmd, cfg); err != nil {
		return err
	}
	if _, err := os.Stat(profilePath); err != nil && !storage.IsStorageURI(profilePath) {
		return fmt.Errorf("profile not found: %s", profilePath)
	}

	svc, err := service.New(cfg, log)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if err := svc.Initialize(ctx, persist); err != nil {
		return err
	}
	defer svc.Close()

	res, err := svc.Analyze(ctx, service.AnalyzeRequest{
		ProfilePath:  profilePath,
		MetadataPath: metadataPath,
		Persist:      persist,
	})
	if err != nil {
		log.Error("Analysis failed: %v", err)
		return err
	}

	out := cmd.OutOrStdout()
	printSummary(out, res, topTypes)
	if cfg.Output.Stats {
		fmt.Fprintln(out)
		if err := res.Results.Stats.Write(out); err != nil {
			return err
		}
	}
	if cfg.Histogram.DumpUnresolvedCallstacks && len(res.Results.Unresolved) > 0 {
		fmt.Fprintln(out)
		color.New(color.FgYellow, color.Bold).Fprintf(out, "Unresolved callstacks (%d)\n", len(res.Results.Unresolved))
		if err := res.Results.DumpUnresolved(out); err != nil {
			return err
		}
	}
	return nil
}

// printSummary prints the hottest types and where the results went.
func printSummary(w io.Writer, res *service.AnalyzeResult, top int) {
	header := color.New(color.FgCyan, color.Bold)
	label := color.New(color.FgHiBlack)
	hot := color.New(color.FgRed)

	stats := res.Results.Stats
	header.Fprintln(w, "=== Field Access Analysis ===")
	label.Fprint(w, "Records:     ")
	fmt.Fprintf(w, "%d (%d resolved, %d unresolved)\n",
		stats.TotalAllocations, stats.TotalFoundType, len(res.Results.Unresolved))
	label.Fprint(w, "Callstacks:  ")
	fmt.Fprintf(w, "%d\n", res.Results.Store.Len())
	label.Fprint(w, "Accesses:    ")
	fmt.Fprintf(w, "%d (%.2f%% on records)\n",
		stats.TotalAccesses, statistics.Percent(stats.AccessesOnRecords, stats.TotalAccesses))
	label.Fprint(w, "Duration:    ")
	fmt.Fprintf(w, "%s\n", res.Duration.Round(time.Millisecond))

	summaries := res.Results.Store.TypeSummaries()
	if len(summaries) > 0 {
		fmt.Fprintln(w)
		header.Fprintln(w, "=== Top Types ===")
		for i, s := range summaries {
			if i >= top {
				break
			}
			pct := statistics.Percent(s.TotalAccesses, stats.TotalAccesses)
			c := color.New(color.Reset)
			if pct >= 10 {
				c = hot
			}
			c.Fprintf(w, "  %2d. %6.2f%%  ", i+1, pct)
			fmt.Fprintf(w, "%s%s  (%d callstacks)\n", s.TypeName, containerSuffix(s), s.Callstacks)
		}
	}

	if verbose && len(res.Stages) > 0 {
		fmt.Fprintln(w)
		header.Fprintln(w, "=== Timing ===")
		for _, st := range res.Stages {
			fmt.Fprintf(w, "  %-18s %s\n", st.Name, st.Duration.Round(time.Microsecond))
		}
	}

	if len(res.Outputs) > 0 || res.RunID != "" {
		fmt.Fprintln(w)
		header.Fprintln(w, "=== Outputs ===")
		for _, p := range res.Outputs {
			fmt.Fprintf(w, "  %s\n", p)
		}
		if res.RunID != "" {
			label.Fprint(w, "  Run ID: ")
			fmt.Fprintln(w, res.RunID)
		}
		if res.ReportURL != "" {
			label.Fprint(w, "  Report: ")
			fmt.Fprintln(w, res.ReportURL)
		}
	}
}

func containerSuffix(s histogram.TypeSummary) string {
	if s.ContainerName == "" {
		return ""
	}
	return " in " + s.ContainerName
}
