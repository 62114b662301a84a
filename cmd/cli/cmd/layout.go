package cmd

import (
	"github.com/spf13/cobra"

	"github.com/perf-analysis/fieldaccess/internal/layout"
	"github.com/perf-analysis/fieldaccess/internal/typetree"
)

var (
	// Layout command flags
	layoutFormat    string
	layoutContainer string
)

// layoutCmd represents the layout command
var layoutCmd = &cobra.Command{
	Use:   "layout <input> [output]",
	Short: "Convert an interchange layout between formats",
	Long: `Layout reads an object layout in JSON, YAML or msgpack (by extension,
optionally .gz or .zst) and writes it to output in the format implied by its
extension. Without output the layout is printed as a type tree.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runLayout,
}

func init() {
	rootCmd.AddCommand(layoutCmd)

	binName := BinName()
	layoutCmd.Example = `  ` + binName + ` layout pair.json pair.msgpack.zst
  ` + binName + ` layout pair.yaml --format flamegraph`

	layoutCmd.Flags().StringVarP(&layoutFormat, "format", "f", "tree", "Print format without output: tree, flamegraph, json, yaml or msgpack")
	layoutCmd.Flags().StringVar(&layoutContainer, "container", "", "Container name recorded on the printed tree")
}

func runLayout(cmd *cobra.Command, args []string) error {
	l, err := layout.ReadFile(args[0])
	if err != nil {
		return err
	}
	if len(args) == 2 {
		if err := layout.WriteFile(args[1], l); err != nil {
			return err
		}
		GetLogger().Info("Wrote %s", args[1])
		return nil
	}
	tree := typetree.FromLayout(l, "", layoutContainer)
	return printTree(cmd.OutOrStdout(), tree, layoutFormat)
}
