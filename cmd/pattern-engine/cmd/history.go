package cmd

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/patternhq/pattern-engine/internal/markdown"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse the local report history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildServices()
		if err != nil {
			return err
		}
		defer svc.close()

		reports, err := svc.reports.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(reports) == 0 {
			fmt.Println("no reports")
			return nil
		}
		for _, report := range reports {
			marker := " "
			if report.IsPending() {
				marker = "*"
			}
			fmt.Printf("%s %s  %s  %s\n", marker, report.ID,
				report.CreatedAt.Format("2006-01-02 15:04"), report.Summary)
		}
		return nil
	},
}

var flagHistoryRaw bool

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a cached report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildServices()
		if err != nil {
			return err
		}
		defer svc.close()

		report, err := svc.reports.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if report == nil {
			return fmt.Errorf("report not found: %s", args[0])
		}
		if flagHistoryRaw {
			fmt.Println(report.Content)
			return nil
		}
		renderer, err := markdown.NewRenderer(0)
		if err != nil {
			fmt.Println(report.Content)
			return nil
		}
		fmt.Println(renderer.Render(report.Content))
		return nil
	},
}

var historySummaryCmd = &cobra.Command{
	Use:   "summary <id>",
	Short: "Print the share-card summary of a cached report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildServices()
		if err != nil {
			return err
		}
		defer svc.close()

		report, err := svc.reports.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if report == nil {
			return fmt.Errorf("report not found: %s", args[0])
		}

		summary := markdown.Summarize(report.Content)
		fmt.Printf("title: %s\n", summary.Title)
		fmt.Printf("keywords: %v\n", summary.Keywords)
		fmt.Printf("highlight: %s\n", summary.Highlight)
		return nil
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a report locally and, when authenticated, on the backend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildServices()
		if err != nil {
			return err
		}
		defer svc.close()

		if err := svc.reports.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		// Remote deletion is best effort; if it fails the next sync will
		// re-download the record, which is recoverable rather than wrong.
		if svc.cfg.Token != "" {
			if err := svc.client.DeleteReport(cmd.Context(), args[0]); err != nil {
				log.Warn("failed to delete remote report", "id", args[0], "error", err)
			}
		}
		return nil
	},
}

func init() {
	historyShowCmd.Flags().BoolVar(&flagHistoryRaw, "raw", false, "print raw markdown without styling")
	historyCmd.AddCommand(historyListCmd, historyShowCmd, historySummaryCmd, historyDeleteCmd)
	rootCmd.AddCommand(historyCmd)
}
