package main

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/anatolykoptev/go-copyhash"
)

// reportKeep is used when no categories are configured.
var reportKeep = []copyhash.Category{copyhash.CategoryIdentical, copyhash.CategorySimilar}

func (a *app) reportCommand() *cobra.Command {
	var input, catalogPath string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the catalog matches of a processed batch",
		Long: `Print every successful record of a processed batch that matched catalog
entries in the kept categories (identical and similar unless --keep says
otherwise). With --catalog each match shows its original name, link and
the provenance of the link.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.settings.MatcherConfig()
			if err != nil {
				return err
			}
			n := len(cfg.Algorithms)
			keep := cfg.Keep
			if len(keep) == 0 {
				keep = reportKeep
			}

			var catalog *copyhash.Catalog
			if catalogPath != "" {
				if catalog, _, err = copyhash.LoadCatalogFile(catalogPath, n); err != nil {
					return fmt.Errorf("load catalog: %w", err)
				}
			}

			src, err := copyhash.OpenResults(input, n)
			if err != nil {
				return fmt.Errorf("open results: %w", err)
			}
			defer src.Close()

			w := cmd.OutOrStdout()
			matched, skipped := 0, 0
			for rec := range src.All() {
				if rec.Status != copyhash.StatusSuccess || rec.Request != copyhash.RequestCompare {
					skipped++
					continue
				}
				result, err := rec.Comparisons()
				if err != nil {
					slog.Warn("copyhash: unreadable comparisons", "id", rec.ID, "error", err)
					skipped++
					continue
				}
				result = copyhash.Filter(result, keep...)
				if len(result) == 0 {
					continue
				}
				matched++
				writeMatches(w, rec, result, catalog)
			}
			if err := src.Err(); err != nil {
				return fmt.Errorf("read results: %w", err)
			}

			slog.Info("copyhash: report done", "records", src.Count(), "matched", matched, "skipped", skipped)
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "processed comparison batch (.csv or .xlsx)")
	cmd.Flags().StringVarP(&catalogPath, "catalog", "c", "", "catalog to resolve matched ids against")
	cmd.Flags().StringSlice("keep", nil, "categories to report (default identical,similar)")
	cmd.Flags().StringSlice("algorithms", nil, "hash algorithms the batch was hashed with")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func writeMatches(w io.Writer, rec copyhash.ComparisonRecord, result copyhash.HashComparisonResult, catalog *copyhash.Catalog) {
	fmt.Fprintf(w, "%s (%s)\n", rec.AssetPath, rec.ID)
	for _, c := range copyhash.Categories {
		for _, id := range sortedIDs(result, c) {
			img, ok := catalog.Lookup(id)
			if !ok {
				fmt.Fprintf(w, "  %-9s %s\n", c, id)
				continue
			}
			fmt.Fprintf(w, "  %-9s %s\t%s\t%s\t[%s]\n", c, id, img.OriginalName, img.Link, img.Provenance())
		}
	}
}

func sortedIDs(result copyhash.HashComparisonResult, c copyhash.Category) []string {
	ids := lo.Keys(copyhash.Filter(result, c))
	slices.Sort(ids)
	return ids
}
