package cmd

import (
	"github.com/spf13/cobra"

	"github.com/perf-analysis/fieldaccess/internal/service"
)

// importCmd represents the import-metadata command
var importCmd = &cobra.Command{
	Use:   "import-metadata <snapshot>",
	Short: "Load a type metadata snapshot into the database",
	Long: `Import-metadata upserts the types, formal parameters and heap allocation
sites of a snapshot file (YAML, JSON or TOML, optionally compressed) into the
configured database, where analyze reads them with metadata.source=database.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := GetLogger()
		svc, err := service.New(cfg, log)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if err := svc.Initialize(ctx, true); err != nil {
			return err
		}
		defer svc.Close()

		snap, err := svc.ImportMetadata(ctx, args[0])
		if err != nil {
			return err
		}
		log.Info("Imported %d types, %d functions, %d allocation sites",
			len(snap.Types), len(snap.FormalParameters), len(snap.HeapAllocSites))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
