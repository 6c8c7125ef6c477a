package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/camden-git/faceattend/models"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var from, to string
	var identity int
	var datesOnly bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded attendance",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.ensure()
			if err != nil {
				return err
			}
			store, closeStore, err := openAttendanceStore(cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			if datesOnly {
				dates, err := store.Dates()
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(dates))
				for _, d := range dates {
					rows = append(rows, []string{d})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Date"}, rows, nil))
				return nil
			}

			filter := models.AttendanceFilter{From: from, To: to}
			if cmd.Flags().Changed("identity") {
				filter.IdentityID = &identity
			}
			records, err := store.List(filter)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(records))
			for _, r := range records {
				rows = append(rows, []string{r.Date(), r.TimeOfDay(), strconv.Itoa(r.Identity.ID), r.Identity.DisplayName})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Date", "Time", "ID", "Name"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}))
			fmt.Fprintf(cmd.OutOrStdout(), "%d records\n", len(records))
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "First date to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Last date to include (YYYY-MM-DD)")
	cmd.Flags().IntVar(&identity, "identity", 0, "Only show this identity id")
	cmd.Flags().BoolVar(&datesOnly, "dates", false, "List the dates that have records")
	return cmd
}
