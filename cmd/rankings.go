package cmd

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/o1-screener/internal/export"
	"github.com/spigell/o1-screener/internal/storage"
)

var rankingsCmd = &cobra.Command{
	Use:   "rankings",
	Short: "Show ranked profiles and optionally export them to a workbook",
	Run: func(cmd *cobra.Command, _ []string) {
		s := setup()
		defer s.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		xlsx, _ := cmd.Flags().GetString("xlsx")

		profiles, err := s.store.Query(commandContext(cmd), storage.Filter{
			RankedOnly: true,
			OrderBy:    storage.OrderRank,
			Limit:      limit,
		})
		if err != nil {
			s.logger.Fatal("listing ranked profiles", zap.Error(err))
		}

		rows := make([]export.RankingRow, 0, len(profiles))
		for _, p := range profiles {
			rows = append(rows, export.RowFromProfile(p))
		}

		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.AppendHeader(table.Row{"Rank", "Name", "Score", "Seniority", "Reach", "Tier", "Suitability", "Review"})
		for _, r := range rows {
			tw.AppendRow(table.Row{
				r.Rank, r.Name, fmt.Sprintf("%.2f", r.FinalScore), r.Seniority, r.ReachLabel,
				r.CompanyTier, formatScore(r.Suitability), r.ReviewStatus,
			})
		}
		tw.Render()

		if xlsx == "" {
			return
		}
		path, err := export.Rankings(rows, xlsx)
		if err != nil {
			s.logger.Fatal("exporting rankings", zap.String("path", xlsx), zap.Error(err))
		}
		s.logger.Info("rankings exported", zap.String("path", path), zap.Int("profiles", len(rows)))
	},
}

func init() {
	rootCmd.AddCommand(rankingsCmd)

	rankingsCmd.Flags().Int("limit", 0, "show only the top N profiles")
	rankingsCmd.Flags().String("xlsx", "", "write the rankings to this workbook")
}
