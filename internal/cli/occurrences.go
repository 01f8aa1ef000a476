package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/faultline/internal/control"
	"github.com/vietddude/faultline/internal/core/config"
	"github.com/vietddude/faultline/internal/core/domain"
	"github.com/vietddude/faultline/internal/core/worker"
	"github.com/vietddude/faultline/internal/infra/storage/memory"
	"github.com/vietddude/faultline/internal/infra/storage/postgres"
)

var (
	filterFingerprint string
	filterErrorID     string
	filterTenant      string
	listLimit         int
	asJSON            bool
)

var occurrencesCmd = &cobra.Command{
	Use:   "occurrences",
	Short: "List recorded occurrences, newest first",
	Run:   runOccurrences,
}

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Stream new occurrences as they are recorded (PostgreSQL sink only)",
	Run:   runTail,
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete occurrences whose retention has ended",
	Run:   runPrune,
}

func init() {
	occurrencesCmd.Flags().StringVar(&filterFingerprint, "fingerprint", "", "only this fingerprint")
	occurrencesCmd.Flags().StringVar(&filterErrorID, "error-id", "", "only this error id")
	occurrencesCmd.Flags().StringVar(&filterTenant, "tenant", "", "only this tenant")
	occurrencesCmd.Flags().IntVar(&listLimit, "limit", 50, "maximum rows")
	occurrencesCmd.Flags().BoolVar(&asJSON, "json", false, "print JSON lines including the redacted context")
	tailCmd.Flags().BoolVar(&asJSON, "json", false, "print JSON lines including the redacted context")

	occurrencesCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(occurrencesCmd, tailCmd)
}

func openSink(ctx context.Context, cfg *config.AppConfig) *control.Sink {
	sink, err := control.OpenSink(ctx, cfg, memory.NewMemoryStorage())
	if err != nil {
		slog.Error("Failed to open occurrence sink", "error", err)
		os.Exit(1)
	}
	return sink
}

func runOccurrences(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ctx := context.Background()

	sink := openSink(ctx, cfg)
	defer func() {
		_ = sink.Close()
	}()

	occs, err := sink.Repo.List(ctx, domain.OccurrenceFilter{
		Fingerprint: filterFingerprint,
		ErrorID:     filterErrorID,
		TenantID:    filterTenant,
		Limit:       listLimit,
	})
	if err != nil {
		slog.Error("Failed to list occurrences", "error", err)
		os.Exit(1)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		for _, occ := range occs {
			_ = enc.Encode(occ)
		}
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "CREATED\tERROR\tSEVERITY\tTENANT\tCORRELATION\tFINGERPRINT")
	for _, occ := range occs {
		printOccurrence(w, occ)
	}
	_ = w.Flush()
}

func printOccurrence(w *tabwriter.Writer, occ domain.Occurrence) {
	_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
		occ.CreatedAt.Local().Format(time.RFC3339),
		occ.ErrorID, occ.Severity, occ.TenantID, occ.CorrelationID, occ.Fingerprint)
}

func runTail(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if cfg.Sink.Driver != config.SinkPostgres {
		slog.Error("Tail requires the postgres sink", "sink", cfg.Sink.Driver)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink := openSink(ctx, cfg)
	defer func() {
		_ = sink.Close()
	}()
	repo := sink.Repo.(*postgres.OccurrenceRepo)

	enc := json.NewEncoder(os.Stdout)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	err := repo.Tail(ctx, func(occ domain.Occurrence) {
		if asJSON {
			_ = enc.Encode(occ)
			return
		}
		printOccurrence(w, occ)
		_ = w.Flush()
	})
	if err != nil && ctx.Err() == nil {
		slog.Error("Tail stopped", "error", err)
		os.Exit(1)
	}
}

func runPrune(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ctx := context.Background()

	sink := openSink(ctx, cfg)
	defer func() {
		_ = sink.Close()
	}()

	n, err := worker.NewPruner(cfg.Pruner, sink.Repo).Prune(ctx)
	if err != nil {
		os.Exit(1)
	}
	fmt.Printf("Pruned %d occurrences\n", n)
}
