package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/patternhq/pattern-engine/internal/api"
	syncpkg "github.com/patternhq/pattern-engine/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile local history and profiles with the backend",
	Long: `Runs the same bidirectional reconciliation that happens after login:
downloads remote records missing locally and uploads local records the
backend has not seen. Requires an authenticated configuration.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildServices()
		if err != nil {
			return err
		}
		defer svc.close()

		if svc.cfg.Token == "" {
			return fmt.Errorf("sync requires an authenticated configuration (set token)")
		}
		userID := svc.cfg.UserID
		if userID == "" {
			userID = "local"
		}

		manager := syncpkg.NewManager(
			syncpkg.NewReportSyncer(svc.client, svc.reports),
			syncpkg.NewProfileSyncer(svc.client, svc.profiles),
		)
		if err := manager.OnAuthChange(cmd.Context(), userID); err != nil {
			if errors.Is(err, api.ErrUnauthorized) {
				return fmt.Errorf("session expired, log in again: %w", err)
			}
			return err
		}
		fmt.Println("sync complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
