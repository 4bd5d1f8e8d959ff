package cmd

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/o1-screener/internal/profile"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show profile counts by processing status and review verdict",
	Run: func(cmd *cobra.Command, _ []string) {
		s := setup()
		defer s.Close()
		ctx := commandContext(cmd)

		byStatus, err := s.store.CountByStatus(ctx)
		if err != nil {
			s.logger.Fatal("counting profiles", zap.Error(err))
		}
		byReview, err := s.store.CountByReview(ctx)
		if err != nil {
			s.logger.Fatal("counting reviews", zap.Error(err))
		}

		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.AppendHeader(table.Row{"Status", "Profiles"})
		total := 0
		for _, st := range []profile.Status{profile.StatusPending, profile.StatusProcessing, profile.StatusCompleted, profile.StatusFailed} {
			tw.AppendRow(table.Row{st, byStatus[st]})
			total += byStatus[st]
		}
		tw.AppendFooter(table.Row{"Total", total})
		tw.Render()

		rw := table.NewWriter()
		rw.SetOutputMirror(os.Stdout)
		rw.AppendHeader(table.Row{"Review", "Profiles"})
		for _, st := range profile.ReviewStatuses {
			rw.AppendRow(table.Row{st, byReview[st]})
		}
		rw.Render()
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
