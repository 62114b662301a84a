package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/perf-analysis/fieldaccess/internal/layout"
	"github.com/perf-analysis/fieldaccess/internal/metadata"
	"github.com/perf-analysis/fieldaccess/internal/service"
	"github.com/perf-analysis/fieldaccess/internal/typetree"
	"github.com/perf-analysis/fieldaccess/pkg/writer"
)

var (
	// Resolve command flags
	resolveMetadata  string
	resolveLocal     bool
	resolveCallstack string
	resolveRequest   int64
	resolveFormat    string
)

// resolveCmd represents the resolve command
var resolveCmd = &cobra.Command{
	Use:   "resolve [type name]",
	Short: "Print the resolved layout of a type or an allocation callstack",
	Long: `Resolve builds the type tree the analysis would use for one type name, or
for the allocation callstack in a JSON or YAML file, and prints it.

Formats: tree (indented dump), flamegraph (collapsed lines), json, yaml and
msgpack (interchange layout).`,
	Args: func(cmd *cobra.Command, args []string) error {
		if resolveCallstack == "" && len(args) != 1 {
			return fmt.Errorf("expected a type name or --callstack")
		}
		if resolveCallstack != "" && len(args) != 0 {
			return fmt.Errorf("a type name and --callstack are exclusive")
		}
		return nil
	},
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	binName := BinName()
	resolveCmd.Example = `  ` + binName + ` resolve --metadata types.yaml 'absl::flat_hash_map<int, Pair>'
  ` + binName + ` resolve --metadata types.yaml --callstack stack.yaml --request 256 --format json`

	f := resolveCmd.Flags()
	f.StringVarP(&resolveMetadata, "metadata", "m", "", "Type metadata snapshot (default from config)")
	f.BoolVar(&resolveLocal, "local", false, "Resolve containers to their element type only")
	f.StringVar(&resolveCallstack, "callstack", "", "File holding an allocation callstack, innermost frame first")
	f.Int64Var(&resolveRequest, "request", 0, "Allocation size in bytes for callstack resolution")
	f.StringVarP(&resolveFormat, "format", "f", "tree", "Output format: tree, flamegraph, json, yaml or msgpack")
}

func runResolve(cmd *cobra.Command, args []string) error {
	if resolveLocal {
		cfg.Resolver.Mode = "local"
	}
	svc, err := service.New(cfg, GetLogger())
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if err := svc.Initialize(ctx, false); err != nil {
		return err
	}
	defer svc.Close()

	store, err := svc.LoadMetadata(ctx, resolveMetadata)
	if err != nil {
		return err
	}
	r, err := svc.NewResolver(store)
	if err != nil {
		return err
	}

	var tree *typetree.TypeTree
	if resolveCallstack != "" {
		cs, err := writer.ReadFromFile[metadata.CallStack](resolveCallstack)
		if err != nil {
			return fmt.Errorf("read callstack: %w", err)
		}
		tree, err = r.ResolveCallstack(ctx, cs, resolveRequest)
		if err != nil {
			return err
		}
	} else {
		tree, err = r.ResolveTypeName(ctx, args[0])
		if err != nil {
			return err
		}
	}
	return printTree(cmd.OutOrStdout(), tree, resolveFormat)
}

func printTree(w io.Writer, tree *typetree.TypeTree, format string) error {
	switch format {
	case "tree":
		return tree.Dump(w, 0)
	case "flamegraph":
		return tree.DumpFlameGraph(w, 1)
	}
	l := tree.ToLayout()
	return layout.Encode(writer.Format(format), w, &l)
}
