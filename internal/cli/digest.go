package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/faultline/internal/alerting/digest"
	"github.com/vietddude/faultline/internal/catalog"
	"github.com/vietddude/faultline/internal/control"
	"github.com/vietddude/faultline/internal/infra/channel"
	"github.com/vietddude/faultline/internal/infra/storage"
	"github.com/vietddude/faultline/internal/infra/storage/memory"
	"github.com/vietddude/faultline/internal/retry"
)

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Operate on the minor-severity digest",
}

var digestFlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Flush the current digest window now instead of waiting for the schedule",
	Run:   runDigestFlush,
}

func init() {
	digestCmd.AddCommand(digestFlushCmd)
	rootCmd.AddCommand(digestCmd)
}

func runDigestFlush(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ctx := context.Background()

	cat, err := catalog.LoadFile(cfg.Catalog.Path)
	if err != nil {
		slog.Error("Failed to load catalog", "error", err)
		os.Exit(1)
	}

	states := control.OpenStateStore(cfg, memory.NewMemoryStorage())
	defer func() {
		_ = states.Close()
	}()
	if !states.Shared {
		slog.Error("Digest flush needs the shared Redis state store")
		os.Exit(1)
	}

	ch, err := channel.New("digest", cfg.Channels.Digest)
	if err != nil {
		slog.Error("Failed to open digest channel", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = channel.Close(ch)
	}()

	agg := digest.New(cfg.Digest, states, ch, cat, retry.New(cat, cfg.Retry))
	res, err := agg.Flush(ctx)
	if errors.Is(err, storage.ErrLeaderHeld) {
		fmt.Println("Another instance is flushing right now")
		return
	}
	if err != nil {
		slog.Error("Digest flush failed", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Flushed %d buckets (%d occurrences), %d requeued\n", res.Buckets, res.Occurrences, res.Failed)
}
