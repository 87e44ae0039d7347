package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/patternhq/pattern-engine/internal/analysis"
	"github.com/patternhq/pattern-engine/internal/stream"
)

var (
	flagBirthDate string
	flagBirthTime string
	flagGender    string
	flagKey       string
	flagLanguage  string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run a streaming analysis and print the report",
	Long: `Runs one analysis session end to end: issues the streaming request,
holds the decoding gate, then reveals content in bursts as it arrives. The
finished report is saved to the local history.`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&flagBirthDate, "birth-date", "", "birth date, yyyy-MM-dd (required)")
	analyzeCmd.Flags().StringVar(&flagBirthTime, "birth-time", "", "birth time, HH:mm (optional)")
	analyzeCmd.Flags().StringVar(&flagGender, "gender", "", "gender: male, female or other")
	analyzeCmd.Flags().StringVar(&flagKey, "key", "full_analysis", "analysis template key")
	analyzeCmd.Flags().StringVar(&flagLanguage, "language", "", "report language (default from config)")
	analyzeCmd.MarkFlagRequired("birth-date")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	svc, err := buildServices()
	if err != nil {
		return err
	}
	defer svc.close()

	language := flagLanguage
	if language == "" {
		language = svc.cfg.Language
	}

	orch := analysis.NewOrchestrator(stream.NewClient(), svc.reports, svc.profiles,
		svc.cfg.APIBaseURL, analysis.Options{})
	orch.SetToken(svc.cfg.Token)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	eventCh := orch.Events().Subscribe(ctx)

	request := analysis.Request{
		BirthDate: flagBirthDate,
		BirthTime: flagBirthTime,
		Gender:    flagGender,
		Language:  language,
		Key:       flagKey,
	}
	if err := orch.Start(request); err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr, "decoding...")

	// Print each reveal burst as it lands; snapshots carry the whole
	// buffer, so only the new suffix goes to stdout.
	printed := 0
	for event := range eventCh {
		switch event.Type {
		case analysis.EventReveal:
			revealed := event.Payload.Revealed
			if len(revealed) > printed {
				fmt.Print(revealed[printed:])
				printed = len(revealed)
			}
		case analysis.EventSettled:
			fmt.Println()
			fmt.Fprintf(os.Stderr, "report saved: %s\n", event.Payload.Report.ID)
			return nil
		case analysis.EventFailed:
			fmt.Println()
			return event.Payload.Err
		}
	}
	return nil
}
