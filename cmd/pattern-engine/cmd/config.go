package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/patternhq/pattern-engine/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective remote bootstrap configuration",
	Long: `Fetches the backend's app-bootstrap document and prints the effective
values. Fetch or parse failures fall back to built-in defaults, the same way
app startup does.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildServices()
		if err != nil {
			return err
		}
		defer svc.close()

		b := config.FetchBootstrap(cmd.Context(), svc.client)

		fmt.Printf("version.latest_version: %s\n", b.Version.LatestVersion)
		fmt.Printf("version.force_update: %t\n", b.Version.ForceUpdate)
		if b.Version.DownloadURL != "" {
			fmt.Printf("version.download_url: %s\n", b.Version.DownloadURL)
		}
		fmt.Printf("features.enable_new_year_theme: %t\n", b.Features.EnableNewYearTheme)
		fmt.Printf("features.show_home_banner: %t\n", b.Features.ShowHomeBanner)
		fmt.Printf("ui.theme_color: %s\n", b.UI.ThemeColor)
		fmt.Printf("announcement.enabled: %t\n", b.Announcement.Enabled)
		if b.Announcement.Content != "" {
			fmt.Printf("announcement.content: %s\n", b.Announcement.Content)
		}
		fmt.Printf("ads.enabled: %t\n", b.Ads.Enabled)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
