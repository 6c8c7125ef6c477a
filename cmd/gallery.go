package cmd

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"gocv.io/x/gocv"

	"github.com/camden-git/faceattend/config"
	"github.com/camden-git/faceattend/media"
)

func newGalleryCommand(ctx *commandContext) *cobra.Command {
	var detect bool

	cmd := &cobra.Command{
		Use:   "gallery",
		Short: "List the reference images in the gallery",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.ensure()
			if err != nil {
				return err
			}

			gallery := newGalleryStore(cfg, logger)
			entries, err := gallery.Entries()
			if err != nil {
				return err
			}

			headers := []string{"ID", "Name", "File"}
			aligns := []columnAlignment{alignRight, alignLeft, alignLeft}
			var detector media.Detector
			if detect {
				detector, err = media.NewDetector(cfg, logger)
				if err != nil {
					return err
				}
				defer detector.Close()
				headers = append(headers, "Faces")
				aligns = append(aligns, alignRight)
			}

			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				row := []string{strconv.Itoa(e.Identity.ID), e.Identity.DisplayName, filepath.Base(e.ImagePath)}
				if detector != nil {
					row = append(row, countFaces(detector, e.ImagePath, cfg.TrainDetection))
				}
				rows = append(rows, row)
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
			fmt.Fprintf(cmd.OutOrStdout(), "%d images in %s\n", len(entries), gallery.Dir())
			return nil
		},
	}
	cmd.Flags().BoolVar(&detect, "detect", false, "Run the training detector on each image and show how many faces it finds")
	return cmd
}

func countFaces(detector media.Detector, path string, params config.DetectionParams) string {
	gray := gocv.IMRead(path, gocv.IMReadGrayScale)
	defer gray.Close()
	if gray.Empty() {
		return "unreadable"
	}
	return strconv.Itoa(len(detector.Detect(gray, params)))
}
