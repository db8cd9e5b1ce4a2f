package main

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/anatolykoptev/go-copyhash"
)

func (a *app) hashCommand() *cobra.Command {
	var (
		output string
		submit bool
	)

	cmd := &cobra.Command{
		Use:   "hash <image>...",
		Short: "Compute the composite hash of each image",
		Long: `Compute the composite hash of each image and print "hash<TAB>path" lines.

With --output the results are written as a comparison batch instead. Add
--submit to turn every hashed record into a COMPARE request ready for
"copyhash compare".`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.settings.MatcherConfig()
			if err != nil {
				return err
			}
			r, err := a.newRun(cfg, nil, false)
			if err != nil {
				return err
			}

			records := make([]copyhash.ComparisonRecord, len(args))
			for i, path := range args {
				records[i] = copyhash.NewComparisonRecord(path, copyhash.RequestComputeHash)
			}
			out, runErr := r.matcher.Run(cmd.Context(), slices.Values(records))
			closeErr := r.close()

			failed := 0
			for i, rec := range out {
				if rec.Status != copyhash.StatusSuccess {
					failed++
					slog.Error("copyhash: hash failed", "path", rec.AssetPath, "error", rec.Message)
					continue
				}
				if submit {
					out[i] = rec.Reset()
					out[i].Request = copyhash.RequestCompare
				}
			}

			if output != "" {
				if err := copyhash.SaveRecordsFile(output, out); err != nil {
					return err
				}
				slog.Info("copyhash: batch written", "output", output, "records", len(out), "failed", failed)
			} else {
				w := cmd.OutOrStdout()
				for _, rec := range out {
					if rec.Status == copyhash.StatusSuccess {
						fmt.Fprintf(w, "%s\t%s\n", rec.Hash, rec.AssetPath)
					}
				}
			}

			if failed > 0 {
				runErr = errors.Join(runErr, fmt.Errorf("%d of %d images could not be hashed", failed, len(out)))
			}
			return errors.Join(runErr, closeErr)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write a comparison batch (.csv or .xlsx) instead of printing")
	cmd.Flags().BoolVar(&submit, "submit", false, "write hashed records as COMPARE requests (with --output)")
	addMatchingFlags(cmd)
	return cmd
}
