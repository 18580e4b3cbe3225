package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	httpadapter "github.com/couchcryptid/water-quality-etl/internal/adapter/http"
	"github.com/couchcryptid/water-quality-etl/internal/adapter/store"
	"github.com/couchcryptid/water-quality-etl/internal/catalog"
	"github.com/couchcryptid/water-quality-etl/internal/config"
	"github.com/couchcryptid/water-quality-etl/internal/domain"
	"github.com/couchcryptid/water-quality-etl/internal/observability"
	"github.com/couchcryptid/water-quality-etl/internal/pipeline"
)

var errValidationFailed = errors.New("validation failed")

func newInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the built-in catalog to a YAML file for editing",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "catalog.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := catalog.Save(catalog.Default(), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Catalog written to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Download results and site metadata and save a snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			snap, err := a.pipeline.Fetch(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Snapshot %s: %d observations from %d sites saved to %s\n",
				snap.RunID, len(snap.Observations), len(snap.Sites), a.snapshots.Path())
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Transform the saved snapshot, load results, and print the trend ranking",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := runOrHint(cmd.Context(), a.pipeline)
			if err != nil {
				return err
			}
			printRunRanking(cmd.OutOrStdout(), result, a.cfg.RankingLimit)
			return nil
		},
	}
}

func newServeCmd() *cobra.Command {
	var fetch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline and serve results over HTTP until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a.restoreLatest(ctx)
			srv := httpadapter.NewServer(a.cfg.HTTPAddr, a.pipeline, a.cfg.RankingLimit, a.logger)

			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					a.logger.Error("http server error", "error", err)
				}
			}()

			// Without a restored run the server answers 503 on result routes
			// until this completes.
			go func() {
				if fetch {
					if _, err := a.pipeline.Fetch(ctx); err != nil {
						a.logger.Error("fetch failed", "error", err)
						return
					}
				}
				if _, err := runOrHint(ctx, a.pipeline); err != nil {
					a.logger.Error("pipeline error", "error", err)
				}
			}()

			<-ctx.Done()
			a.logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Error("http server shutdown error", "error", err)
			}

			a.logger.Info("shutdown complete")
			return nil
		},
	}
	cmd.Flags().BoolVar(&fetch, "fetch", false, "download a fresh snapshot before the first run")
	return cmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Transform the saved snapshot and check the consistency of every stage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := runOrHint(cmd.Context(), a.pipeline)
			if err != nil {
				return err
			}
			if !printReport(cmd.OutOrStdout(), result, pipeline.Verify(result, a.catalog)) {
				return errValidationFailed
			}
			return nil
		},
	}
}

func newRankingsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "rankings",
		Short: "Print the trend ranking of the most recent run stored in the results database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !cfg.DatabaseEnabled() {
				return errors.New("DATABASE_DSN is not set; rankings are read from the results database")
			}
			if limit <= 0 {
				limit = cfg.RankingLimit
			}

			st, err := store.Open(cfg.DatabaseDriver, cfg.DatabaseDSN, observability.NewLogger(cfg))
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck // read-only session

			runID, ranking, err := st.LatestRanking(cmd.Context(), limit)
			if errors.Is(err, store.ErrNoRuns) {
				return fmt.Errorf("%w; run `wqetl run` with DATABASE_DSN set first", err)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Run %s: top %d stored fits\n\n", runID, len(ranking))
			printRanking(cmd.OutOrStdout(), ranking, 0)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "number of fits to print (default RANKING_LIMIT)")
	return cmd
}

func printRunRanking(w io.Writer, result *domain.RunResult, limit int) {
	fmt.Fprintf(w, "Run %s: %d fitted, %d skipped\n\n", result.RunID, len(result.Ranking), len(result.Skipped()))
	printRanking(w, result.Ranking, limit)
}

func printRanking(w io.Writer, ranking []domain.FitStats, limit int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tPARAMETER\tSITE\tN\tSLOPE\tADJ R²\tP")
	for i, f := range ranking {
		if limit > 0 && i >= limit {
			break
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%.4g\t%s\t%s\n",
			i+1, f.Parameter, f.Site, f.N, f.Slope, formatOptional(f.AdjRSquared), formatOptional(f.PValue))
	}
	tw.Flush() //nolint:errcheck // terminal output
}

// printReport prints a pass/fail line per phase followed by the errors of
// every failed phase, and reports whether all phases passed.
func printReport(w io.Writer, result *domain.RunResult, report *pipeline.Report) bool {
	fmt.Fprintln(w, "=== Water Quality Consistency Validation ===")
	fmt.Fprintln(w)
	for _, p := range report.Phases {
		status := "\033[32mPASS\033[0m"
		if !p.Passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.Errors)+p.Suppressed)
		}
		fmt.Fprintf(w, "  %-32s %s\n", p.Name, status)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Rows: %d clean, %d tidy, %d daily, %d annual, %d wide, %d ranked\n",
		result.CleanRows, len(result.Tidy), len(result.Daily), len(result.Annual), len(result.Wide.Rows), len(result.Ranking))

	for _, p := range report.Phases {
		if p.Passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.Name)
		for i, e := range p.Errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
		if p.Suppressed > 0 {
			fmt.Fprintf(w, "  ... %d more\n", p.Suppressed)
		}
	}

	if report.Passed() {
		fmt.Fprintln(w, "\nAll validations passed.")
		return true
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return false
}

func formatOptional(v *float64) string {
	if v == nil {
		return "NA"
	}
	return fmt.Sprintf("%.4g", *v)
}
