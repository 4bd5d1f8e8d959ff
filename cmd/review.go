package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/o1-screener/internal/ai"
	"github.com/spigell/o1-screener/internal/profile"
)

var reviewCmd = &cobra.Command{
	Use:   "review <profile-id>",
	Short: "Record a manual review verdict for a profile",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := setup()
		defer s.Close()
		ctx := commandContext(cmd)

		p, err := s.store.Get(ctx, args[0])
		if err != nil {
			s.logger.Fatal("loading profile", zap.String("profile_id", args[0]), zap.Error(err))
		}

		renderEvidence(p)

		verdict, _ := cmd.Flags().GetString("status")
		notes, _ := cmd.Flags().GetString("notes")

		status, ok := profile.ParseReviewStatus(verdict)
		if verdict == "" {
			status, err = promptReview(p.ReviewStatus)
			if err != nil {
				s.logger.Fatal("exiting", zap.Error(err))
			}
			prompt := promptui.Prompt{Label: "Notes", Default: p.ReviewNotes}
			if notes, err = prompt.Run(); err != nil {
				s.logger.Fatal("exiting", zap.Error(err))
			}
		} else if !ok {
			s.logger.Fatal("unknown review status", zap.String("status", verdict))
		}

		if err := s.store.UpdateReview(ctx, p.ID, status, strings.TrimSpace(notes)); err != nil {
			s.logger.Fatal("saving review", zap.String("profile_id", p.ID), zap.Error(err))
		}
		s.logger.Info("review saved", zap.String("profile_id", p.ID), zap.String("review", string(status)))
	},
}

func init() {
	rootCmd.AddCommand(reviewCmd)

	reviewCmd.Flags().String("status", "", "verdict (unknown, candidate, not_candidate). Prompts when empty")
	reviewCmd.Flags().String("notes", "", "review notes")
}

func promptReview(current profile.ReviewStatus) (profile.ReviewStatus, error) {
	items := make([]string, 0, len(profile.ReviewStatuses))
	cursor := 0
	for i, st := range profile.ReviewStatuses {
		items = append(items, string(st))
		if st == current {
			cursor = i
		}
	}

	prompt := promptui.Select{
		Label:     "Review verdict",
		Items:     items,
		CursorPos: cursor,
	}
	_, picked, err := prompt.Run()
	if err != nil {
		return "", err
	}
	return profile.ReviewStatus(picked), nil
}

func renderEvidence(p *profile.Profile) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetTitle(fmt.Sprintf("%s (score %s, rank %s, suitability %s)",
		p.Name, formatScore(p.FinalScore), formatRank(p.Rank), formatScore(p.SuitabilityScore)))
	tw.AppendHeader(table.Row{"Category", "Evidence"})
	for _, key := range ai.EvidenceKeys(p.Evidence) {
		tw.AppendRow(table.Row{key, strings.Join(p.Evidence[key], "\n")})
	}
	if p.SuitabilityReason != "" {
		tw.AppendFooter(table.Row{"Suitability", p.SuitabilityReason})
	}
	tw.Render()
}
