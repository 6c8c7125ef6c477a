package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/camden-git/faceattend/models"
)

func newEnrollCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "enroll <id> <name> <image>...",
		Short: "Add reference images for an identity to the gallery",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.ensure()
			if err != nil {
				return err
			}

			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("id %q must be an integer", args[0])
			}
			identity := models.Identity{ID: id, DisplayName: args[1]}
			gallery := newGalleryStore(cfg, logger)

			for _, path := range args[2:] {
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("open %s: %w", path, err)
				}
				entry, err := gallery.Enroll(identity, f)
				f.Close()
				if err != nil {
					return fmt.Errorf("enroll %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", path, entry.ImagePath)
			}
			return nil
		},
	}
}
