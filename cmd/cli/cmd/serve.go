package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/perf-analysis/fieldaccess/internal/service"
	"github.com/perf-analysis/fieldaccess/internal/webui"
)

var (
	// Serve command flags
	serveAddr string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API over persisted analysis runs",
	Long: `Serve exposes the runs stored with analyze --persist:

  GET /api/runs                          list runs
  GET /api/runs/{id}                     run with statistics
  GET /api/runs/{id}/entries?type_prefix=&limit= histogram entries
  GET /api/runs/{id}/entries/{entry}     entry with its fields
  GET /api/runs/{id}/types               per-type summary
  GET /api/runs/{id}/flamegraph?metric=  flame graph of the run`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	binName := BinName()
	serveCmd.Example = `  ` + binName + ` serve
  ` + binName + ` serve --addr :9090 --config prod.yaml`

	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", ":8080", "Listen address")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := GetLogger()
	svc, err := service.New(cfg, log)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := svc.Initialize(ctx, true); err != nil {
		return err
	}
	defer svc.Close()

	log.Info("Serving runs from %s database on %s", cfg.Database.Type, serveAddr)
	return webui.NewServer(svc.Repositories().Run, serveAddr, log).Start(ctx)
}
