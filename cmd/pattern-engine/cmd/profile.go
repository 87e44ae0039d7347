package cmd

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/patternhq/pattern-engine/internal/storage"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage saved profiles",
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildServices()
		if err != nil {
			return err
		}
		defer svc.close()

		profiles, err := svc.profiles.List(cmd.Context())
		if err != nil {
			return err
		}
		defaultID, err := svc.profiles.DefaultID(cmd.Context())
		if err != nil {
			return err
		}

		if len(profiles) == 0 {
			fmt.Println("no profiles")
			return nil
		}
		for _, p := range profiles {
			marker := " "
			if p.ID == defaultID {
				marker = "*"
			}
			label := p.Label
			if label == "" {
				label = "(unnamed)"
			}
			fmt.Printf("%s %s  %s  %s %s  %s\n", marker, p.ID, label, p.BirthDate, p.BirthTime, p.Gender)
		}
		return nil
	},
}

var (
	flagProfileBirthDate string
	flagProfileBirthTime string
	flagProfileGender    string
	flagProfileCity      string
	flagProfileLabel     string
)

var profileAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Save a new profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildServices()
		if err != nil {
			return err
		}
		defer svc.close()

		now := time.Now()
		profile := &storage.Profile{
			ID:        uuid.New().String(),
			BirthDate: flagProfileBirthDate,
			BirthTime: flagProfileBirthTime,
			Gender:    flagProfileGender,
			City:      flagProfileCity,
			Label:     flagProfileLabel,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if svc.cfg.Token == "" {
			profile.PendingSince = now
		}
		if err := svc.profiles.Put(cmd.Context(), profile); err != nil {
			return err
		}
		fmt.Println(profile.ID)
		return nil
	},
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a profile locally and, when authenticated, on the backend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildServices()
		if err != nil {
			return err
		}
		defer svc.close()

		if err := svc.profiles.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		if svc.cfg.Token != "" {
			if err := svc.client.DeleteProfile(cmd.Context(), args[0]); err != nil {
				log.Warn("failed to delete remote profile", "id", args[0], "error", err)
			}
		}
		return nil
	},
}

var profileEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Update a profile's label, city or birth time",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildServices()
		if err != nil {
			return err
		}
		defer svc.close()

		profile, err := svc.profiles.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if profile == nil {
			return fmt.Errorf("profile not found: %s", args[0])
		}

		if cmd.Flags().Changed("label") {
			profile.Label = flagProfileLabel
		}
		if cmd.Flags().Changed("city") {
			profile.City = flagProfileCity
		}
		if cmd.Flags().Changed("birth-time") {
			profile.BirthTime = flagProfileBirthTime
		}
		profile.UpdatedAt = time.Now()

		if err := svc.profiles.Put(cmd.Context(), profile); err != nil {
			return err
		}
		if svc.cfg.Token != "" && !profile.IsPending() {
			if err := svc.client.UpdateProfile(cmd.Context(), *profile); err != nil {
				log.Warn("failed to update remote profile", "id", profile.ID, "error", err)
			}
		}
		return nil
	},
}

var profileDefaultCmd = &cobra.Command{
	Use:   "default <id>",
	Short: "Mark a profile as the default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildServices()
		if err != nil {
			return err
		}
		defer svc.close()
		return svc.profiles.SetDefault(cmd.Context(), args[0])
	},
}

func init() {
	profileAddCmd.Flags().StringVar(&flagProfileBirthDate, "birth-date", "", "birth date, yyyy-MM-dd (required)")
	profileAddCmd.Flags().StringVar(&flagProfileBirthTime, "birth-time", "", "birth time, HH:mm")
	profileAddCmd.Flags().StringVar(&flagProfileGender, "gender", "", "gender: male or female (required)")
	profileAddCmd.Flags().StringVar(&flagProfileCity, "city", "", "birth city")
	profileAddCmd.Flags().StringVar(&flagProfileLabel, "label", "", "display label")
	profileAddCmd.MarkFlagRequired("birth-date")
	profileAddCmd.MarkFlagRequired("gender")

	profileEditCmd.Flags().StringVar(&flagProfileBirthTime, "birth-time", "", "birth time, HH:mm")
	profileEditCmd.Flags().StringVar(&flagProfileCity, "city", "", "birth city")
	profileEditCmd.Flags().StringVar(&flagProfileLabel, "label", "", "display label")

	profileCmd.AddCommand(profileListCmd, profileAddCmd, profileEditCmd, profileDeleteCmd, profileDefaultCmd)
	rootCmd.AddCommand(profileCmd)
}
