package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/o1-screener/internal/pipeline"
)

var suitabilityCmd = &cobra.Command{
	Use:   "suitability",
	Short: "Manage suitability scores",
}

var suitabilityRecomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Recompute suitability for every completed profile from its stored document",
	Run: func(cmd *cobra.Command, _ []string) {
		s := setup()
		defer s.Close()

		// Recomputing reads only stored documents, so no scraper or assessor is needed.
		proc := pipeline.NewProcessor(pipeline.Deps{
			Store:  s.store,
			Audit:  s.audit,
			Logger: s.logger,
		}, s.config.Pipeline)

		n, err := proc.RecomputeSuitability(commandContext(cmd))
		if err != nil {
			s.logger.Fatal("recomputing suitability", zap.Error(err))
		}
		s.logger.Info("suitability recomputed", zap.Int("profiles", n))
	},
}

func init() {
	rootCmd.AddCommand(suitabilityCmd)
	suitabilityCmd.AddCommand(suitabilityRecomputeCmd)
}
