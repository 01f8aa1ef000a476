package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/faultline/internal/control"
	"github.com/vietddude/faultline/internal/health"
	"github.com/vietddude/faultline/internal/infra/storage/memory"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check connectivity to the occurrence sink and the state store",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ctx := context.Background()

	mem := memory.NewMemoryStorage()
	sink := openSink(ctx, cfg)
	defer func() {
		_ = sink.Close()
	}()
	states := control.OpenStateStore(cfg, mem)
	defer func() {
		_ = states.Close()
	}()

	report := health.NewMonitor(time.Second,
		health.Check{Name: "sink:" + cfg.Sink.Driver, Critical: true, Run: sink.Repo.Health},
		health.Check{Name: "state_store", Run: states.Ping},
	).CheckHealth(ctx)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "COMPONENT\tSTATUS\tERROR")
	for name, c := range report.Components {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", name, c.Status, c.Error)
	}
	_, _ = fmt.Fprintf(w, "system\t%s\t\n", report.SystemStatus)
	if !states.Shared {
		_, _ = fmt.Fprintln(w, "note\tstate store is in-process; dedup is not shared across instances\t")
	}
	_ = w.Flush()

	if report.SystemStatus == health.StatusCritical {
		os.Exit(1)
	}
}
