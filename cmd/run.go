package cmd

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/o1-screener/internal/pipeline"
	"github.com/spigell/o1-screener/internal/profile"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process a batch of profiles (all pending and failed ones by default)",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringSlice("ids", nil, "profile ids to process. Default is every pending and failed profile")
	runCmd.Flags().Int("concurrency", 0, "maximum concurrent runs (overrides batch.concurrency)")
	runCmd.Flags().Duration("delay", 0, "delay between profiles in sequential mode (overrides batch.delay)")
	runCmd.Flags().Bool("sequential", false, "process one profile at a time")
	runCmd.Flags().Bool("concurrent", false, "process concurrently regardless of the batch size")
	runCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before processing")

	runCmd.MarkFlagsMutuallyExclusive("sequential", "concurrent")

	viper.BindPFlag("batch.concurrency", runCmd.Flags().Lookup("concurrency"))
	viper.BindPFlag("batch.delay", runCmd.Flags().Lookup("delay"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := commandContext(cmd)

	s := setup()
	defer s.Close()
	logger := s.logger

	logger.Info("starting the o1-screener", zap.String("version", version))

	ids, _ := cmd.Flags().GetStringSlice("ids")
	if len(ids) == 0 {
		listed, err := s.store.IDsByStatus(ctx, profile.StatusPending, profile.StatusFailed)
		if err != nil {
			logger.Fatal("listing runnable profiles", zap.Error(err))
		}
		ids = listed
	}

	if len(ids) == 0 {
		logger.Info("exiting", zap.String("reason", "no pending or failed profiles"))
		return
	}

	if auto, _ := cmd.Flags().GetBool("auto-approve"); !auto {
		prompt := promptui.Select{
			Label: fmt.Sprintf("Process %d profiles?", len(ids)),
			Items: []string{PromptYes, PromptNo},
		}
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
		if action != PromptYes {
			logger.Info("exiting", zap.String("reason", "got no from prompt"))
			return
		}
	}

	proc, err := s.processor(ctx)
	if err != nil {
		logger.Fatal("preparing the pipeline", zap.Error(err))
	}

	mode := pipeline.ModeAuto
	if seq, _ := cmd.Flags().GetBool("sequential"); seq {
		mode = pipeline.ModeSequential
	}
	if conc, _ := cmd.Flags().GetBool("concurrent"); conc {
		mode = pipeline.ModeConcurrent
	}

	runner := pipeline.NewRunner(proc, s.store, s.config.Batch, logger)
	res, err := runner.Run(ctx, ids, mode)
	if err != nil {
		logger.Fatal("running the batch", zap.Error(err))
	}

	renderBatch(res)
}

func renderBatch(res pipeline.BatchResult) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Profile", "Result", "Score", "Rank", "Failed Step", "Error Kind", "Error"})
	for _, r := range res.Results {
		outcome := "ok"
		if !r.Success {
			outcome = "failed"
		}
		tw.AppendRow(table.Row{r.ProfileID, outcome, formatScore(r.FinalScore), formatRank(r.Rank), r.FailedStep, r.Kind, r.Error})
	}
	tw.AppendFooter(table.Row{"Total", res.Total, "", "", "", fmt.Sprintf("ok %d", res.Successful), fmt.Sprintf("failed %d", res.Failed)})
	tw.Render()
}

func formatScore(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

func formatRank(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}
