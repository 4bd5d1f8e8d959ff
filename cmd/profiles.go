package cmd

import (
	"context"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/o1-screener/internal/profile"
	"github.com/spigell/o1-screener/internal/scraper"
	"github.com/spigell/o1-screener/internal/storage"
	"github.com/spigell/o1-screener/internal/utils"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Register and inspect profiles",
}

var profilesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a profile or refresh an existing one by its api id",
	Run: func(cmd *cobra.Command, _ []string) {
		s := setup()
		defer s.Close()

		flags := cmd.Flags()
		apiID, _ := flags.GetString("api-id")
		name, _ := flags.GetString("name")
		email, _ := flags.GetString("email")
		reference, _ := flags.GetString("reference")
		info, _ := flags.GetString("info")

		p, err := s.store.Upsert(commandContext(cmd), &profile.Profile{
			APIID:          apiID,
			Name:           name,
			Email:          email,
			Reference:      scraper.NormalizeReference(reference),
			AdditionalInfo: info,
		})
		if err != nil {
			s.logger.Fatal("registering profile", zap.String("api_id", apiID), zap.Error(err))
		}

		s.logger.Info("profile registered",
			zap.String("profile_id", p.ID),
			zap.String("api_id", p.APIID),
			zap.String("status", string(p.Status)),
		)
		renderProfiles([]*profile.Profile{p})
	},
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles",
	Run: func(cmd *cobra.Command, _ []string) {
		s := setup()
		defer s.Close()

		statuses, _ := cmd.Flags().GetStringSlice("status")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := storage.Filter{Limit: limit}
		for _, st := range statuses {
			filter.Statuses = append(filter.Statuses, profile.Status(st))
		}

		profiles, err := s.store.Query(commandContext(cmd), filter)
		if err != nil {
			s.logger.Fatal("listing profiles", zap.Error(err))
		}
		renderProfiles(profiles)
	},
}

var profilesLogsCmd = &cobra.Command{
	Use:   "logs <profile-id>",
	Short: "Show the processing log of a profile, newest first",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := setup()
		defer s.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		entries, err := s.audit.ListByProfile(commandContext(cmd), args[0], limit)
		if err != nil {
			s.logger.Fatal("reading processing log", zap.String("profile_id", args[0]), zap.Error(err))
		}

		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.AppendHeader(table.Row{"Time", "Step", "Status", "Message"})
		for _, e := range entries {
			tw.AppendRow(table.Row{e.Timestamp.Local().Format(time.DateTime), e.Step, e.Status, utils.TruncateForLog(e.Message, 120)})
		}
		tw.Render()
	},
}

func init() {
	rootCmd.AddCommand(profilesCmd)
	profilesCmd.AddCommand(profilesAddCmd, profilesListCmd, profilesLogsCmd)

	profilesAddCmd.Flags().String("api-id", "", "stable external id of the profile")
	profilesAddCmd.Flags().String("name", "", "full name")
	profilesAddCmd.Flags().String("email", "", "contact email. Ignored for already registered profiles")
	profilesAddCmd.Flags().String("reference", "", "professional network profile url or handle")
	profilesAddCmd.Flags().String("info", "", "additional information passed to the assessment")
	_ = profilesAddCmd.MarkFlagRequired("api-id")
	_ = profilesAddCmd.MarkFlagRequired("name")
	_ = profilesAddCmd.MarkFlagRequired("email")

	profilesListCmd.Flags().StringSlice("status", nil, "status filter (pending, processing, completed, failed)")
	profilesListCmd.Flags().Int("limit", 0, "maximum number of profiles")

	profilesLogsCmd.Flags().Int("limit", 50, "maximum number of log entries")
}

func renderProfiles(profiles []*profile.Profile) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "API ID", "Name", "Status", "Score", "Rank", "Review", "Updated"})
	for _, p := range profiles {
		tw.AppendRow(table.Row{
			p.ID, p.APIID, p.Name, p.Status, formatScore(p.FinalScore), formatRank(p.Rank),
			p.ReviewStatus, p.UpdatedAt.Local().Format(time.DateTime),
		})
	}
	tw.Render()
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
