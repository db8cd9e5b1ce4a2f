package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/anatolykoptev/go-copyhash"
)

func (a *app) compareCommand() *cobra.Command {
	var (
		catalogPath string
		input       string
		output      string
		progress    bool
	)

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Run a comparison batch against a catalog",
		Long: `Load the catalog (fail fast on any bad row), run every record of the
input batch through the matching workflow and write one output record per
input record. CSV output is written as records finish, in input order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.settings.MatcherConfig()
			if err != nil {
				return err
			}
			n := len(cfg.Algorithms)

			catalog, rows, err := copyhash.LoadCatalogFile(catalogPath, n)
			if err != nil {
				return fmt.Errorf("load catalog: %w", err)
			}
			slog.Info("copyhash: catalog loaded", "path", catalogPath, "entries", catalog.Len(), "rows", rows)

			src, err := copyhash.OpenRecords(input, n)
			if err != nil {
				return fmt.Errorf("open records: %w", err)
			}
			defer src.Close()

			w, err := copyhash.NewRecordWriter(output)
			if err != nil {
				return err
			}

			r, err := a.newRun(cfg, catalog, progress)
			if err != nil {
				return err
			}
			counts := make(map[copyhash.Status]int)
			runErr := r.matcher.Stream(cmd.Context(), src.All(), func(rec copyhash.ComparisonRecord) error {
				counts[rec.Status]++
				return w.Write(rec)
			})
			closeErr := r.close()
			if err := src.Err(); err != nil {
				runErr = errors.Join(runErr, fmt.Errorf("read records: %w", err))
			}

			if err := w.Close(); err != nil {
				return errors.Join(runErr, err)
			}

			slog.Info("copyhash: batch finished",
				"records", src.Count(),
				"success", counts[copyhash.StatusSuccess],
				"error", counts[copyhash.StatusError],
				"unhandled", counts[copyhash.StatusUnhandledError],
				"output", output)
			return errors.Join(runErr, closeErr)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&catalogPath, "catalog", "c", "", "catalog of known images (.csv or .xlsx)")
	f.StringVarP(&input, "input", "i", "", "comparison batch to process (.csv or .xlsx)")
	f.StringVarP(&output, "output", "o", "", "where to write the processed batch (.csv or .xlsx)")
	f.Int("identity-threshold", copyhash.DefaultIdentityThreshold, "largest mean distance counted as identical")
	f.Int("similarity-threshold", copyhash.DefaultSimilarityThreshold, "largest mean distance counted as similar")
	f.Bool("compute-missing", false, "hash COMPARE records that have no hash instead of failing them")
	f.StringSlice("keep", nil, "only record these categories in copyright_comparisons")
	f.BoolVar(&progress, "progress", false, "show a progress indicator on stderr")
	addMatchingFlags(cmd)
	for _, name := range []string{"catalog", "input", "output"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
