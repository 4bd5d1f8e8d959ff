package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/o1-screener/internal/pipeline"
)

var processCmd = &cobra.Command{
	Use:   "process <profile-id>",
	Short: "Run the pipeline for a single profile",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := commandContext(cmd)

		s := setup()
		defer s.Close()

		proc, err := s.processor(ctx)
		if err != nil {
			s.logger.Fatal("preparing the pipeline", zap.Error(err))
		}

		res := proc.Process(ctx, args[0])
		renderBatch(pipeline.BatchResult{
			Total:      1,
			Successful: boolToInt(res.Success),
			Failed:     boolToInt(!res.Success),
			Results:    []pipeline.Result{res},
		})
	},
}

func init() {
	rootCmd.AddCommand(processCmd)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
