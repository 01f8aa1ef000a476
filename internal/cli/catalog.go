package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/faultline/internal/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect and validate the error catalog",
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Validate a catalog file (defaults to catalog.path from the config)",
	Args:  cobra.MaximumNArgs(1),
	Run:   runCatalogValidate,
}

var catalogLookupCmd = &cobra.Command{
	Use:   "lookup [error_id]",
	Short: "Show the definition registered for an error id",
	Args:  cobra.ExactArgs(1),
	Run:   runCatalogLookup,
}

func init() {
	catalogCmd.AddCommand(catalogValidateCmd, catalogLookupCmd)
	rootCmd.AddCommand(catalogCmd)
}

func catalogPath(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return loadConfig().Catalog.Path
}

func runCatalogValidate(cmd *cobra.Command, args []string) {
	path := catalogPath(args)

	cat, err := catalog.LoadFile(path)
	if err != nil {
		var le *catalog.LoadError
		if errors.As(err, &le) {
			fmt.Printf("%s is invalid:\n", path)
			for _, p := range le.Problems {
				fmt.Printf("  - %s\n", p)
			}
			os.Exit(1)
		}
		slog.Error("Failed to load catalog", "error", err)
		os.Exit(1)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ID\tSEVERITY\tRETRY\tSTATUS\tVISIBLE\tMESSAGE KEY")
	for _, def := range cat.All() {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\t%s\n",
			def.ID, def.Severity, def.RetryStrategy, def.HTTPStatus, def.UserVisible, def.UserMessageKey)
	}
	_ = w.Flush()
	fmt.Printf("%s is valid: %d definitions\n", path, cat.Len())
}

func runCatalogLookup(cmd *cobra.Command, args []string) {
	cat, err := catalog.LoadFile(loadConfig().Catalog.Path)
	if err != nil {
		slog.Error("Failed to load catalog", "error", err)
		os.Exit(1)
	}

	def, err := cat.Resolve(args[0])
	if err != nil {
		fmt.Printf("%v (falls back to %s)\n", err, def.ID)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintf(w, "ID\t%s\n", def.ID)
	_, _ = fmt.Fprintf(w, "GROUP\t%s\n", def.Group)
	_, _ = fmt.Fprintf(w, "SEVERITY\t%s\n", def.Severity)
	_, _ = fmt.Fprintf(w, "RETRY\t%s\n", def.RetryStrategy)
	_, _ = fmt.Fprintf(w, "HTTP STATUS\t%d\n", def.HTTPStatus)
	_, _ = fmt.Fprintf(w, "USER VISIBLE\t%t\n", def.UserVisible)
	_, _ = fmt.Fprintf(w, "MESSAGE KEY\t%s\n", def.UserMessageKey)
	_, _ = fmt.Fprintf(w, "DESCRIPTION\t%s\n", def.Description)
	_, _ = fmt.Fprintf(w, "RUNBOOK\t%s\n", def.RunbookRef)
	_ = w.Flush()
}
