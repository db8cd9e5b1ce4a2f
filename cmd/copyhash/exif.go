package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/anatolykoptev/go-copyhash"
)

func (a *app) exifCommand() *cobra.Command {
	var input, output string

	cmd := &cobra.Command{
		Use:   "exif",
		Short: "Report the copyright metadata of a list of images",
		Long: `Read image paths (one per line) from --input, look for an EXIF copyright
statement and stock or Creative Commons markers in each image's metadata,
and write one report row per image to --output.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(input)
			if err != nil {
				return fmt.Errorf("open path list: %w", err)
			}
			paths, err := copyhash.ReadPathList(f)
			f.Close()
			if err != nil {
				return err
			}

			slog.Info("copyhash: checking images", "images", len(paths), "output", output)
			reports := copyhash.CheckImages(paths)
			if err := copyhash.WriteImageReportsFile(output, reports); err != nil {
				return err
			}

			found := 0
			for _, r := range reports {
				if r.Exif.Status == copyhash.ReportOK {
					found++
				}
			}
			slog.Info("copyhash: image reports written", "output", output, "images", len(reports), "with_copyright", found)
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "file listing one image path per line")
	cmd.Flags().StringVarP(&output, "output", "o", "", "report file (.csv or .xlsx)")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}
