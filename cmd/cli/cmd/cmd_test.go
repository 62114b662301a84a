package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perf-analysis/fieldaccess/internal/histogram"
	"github.com/perf-analysis/fieldaccess/internal/service"
	"github.com/perf-analysis/fieldaccess/internal/statistics"
	"github.com/perf-analysis/fieldaccess/pkg/config"
)

func TestApplyAnalyzeFlags(t *testing.T) {
	f := analyzeCmd.Flags()
	require.NoError(t, f.Set("local", "true"))
	require.NoError(t, f.Set("limit", "5"))
	require.NoError(t, f.Set("type-prefix-filter", "absl::,std::"))
	require.NoError(t, f.Set("only-records", "true"))
	t.Cleanup(func() {
		localMode, limit, typePrefixFilter, onlyRecords = false, -1, nil, false
	})

	c := config.Default()
	require.NoError(t, applyAnalyzeFlags(analyzeCmd, c))

	assert.Equal(t, "local", c.Resolver.Mode)
	assert.Equal(t, 5, c.Output.Limit)
	assert.Equal(t, []string{"absl::", "std::"}, c.Histogram.TypePrefixFilter)
	assert.True(t, c.Histogram.OnlyRecords)
	assert.False(t, c.Output.Flamegraph)
}

func TestPrintSummary(t *testing.T) {
	color.NoColor = true

	res := &service.AnalyzeResult{
		RunID: "run-1",
		Results: &histogram.Results{
			Store: histogram.NewStore(),
			Stats: statistics.Statistics{TotalAllocations: 4, TotalFoundType: 3, TotalAccesses: 20, AccessesOnRecords: 5},
		},
		Outputs:  []string{"out.txt"},
		Duration: 1500 * time.Millisecond,
	}

	var buf bytes.Buffer
	printSummary(&buf, res, 10)
	out := buf.String()

	assert.Contains(t, out, "Records:     4 (3 resolved, 0 unresolved)")
	assert.Contains(t, out, "Accesses:    20 (25.00% on records)")
	assert.Contains(t, out, "Duration:    1.5s")
	assert.Contains(t, out, "  out.txt")
	assert.Contains(t, out, "Run ID: run-1")
	assert.NotContains(t, out, "Top Types")
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"version", "--short"})
	t.Cleanup(func() { rootCmd.SetOut(nil); rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, Version+"\n", buf.String())
}
