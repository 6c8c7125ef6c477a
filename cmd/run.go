package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/camden-git/faceattend/models"
	"github.com/camden-git/faceattend/services"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one attendance session against the camera until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.ensure()
			if err != nil {
				return err
			}
			if err := checkDetector(cfg, logger); err != nil {
				return err
			}

			store, closeStore, err := openAttendanceStore(cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			service := services.NewRecognitionService(cfg, newGalleryStore(cfg, logger), store, nil, nil, logger)
			status, err := service.Start(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s running with %d identities. Press Ctrl-C to stop.\n", status.Session.ID, status.Identities)

			<-cmd.Context().Done()
			status, err = service.Stop()
			if err != nil {
				return err
			}

			started := status.Session.StartedAt
			records, err := store.List(models.AttendanceFilter{From: started.Format(models.DateLayout)})
			if err != nil {
				return err
			}
			var session []models.AttendanceRecord
			for _, r := range records {
				if !r.Timestamp.Before(started.Truncate(time.Millisecond)) {
					session = append(session, r)
				}
			}
			sort.SliceStable(session, func(i, j int) bool { return session[i].Timestamp.Before(session[j].Timestamp) })

			rows := make([][]string, 0, len(session))
			for _, r := range session {
				rows = append(rows, []string{r.Date(), r.TimeOfDay(), strconv.Itoa(r.Identity.ID), r.Identity.DisplayName})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Date", "Time", "ID", "Name"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}))
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %d, write failures %d.\n", status.Session.Recorded, status.Session.WriteFailures)
			return nil
		},
	}
}
