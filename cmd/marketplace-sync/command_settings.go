package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/saidutt46/switchboard-marketplace/internal/app"
	"github.com/saidutt46/switchboard-marketplace/internal/database"
	"github.com/saidutt46/switchboard-marketplace/internal/settings"
)

var settingsEnv string

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage environment settings",
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a setting and notify running instances",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			s := database.Setting{Environment: settingsEnv, Key: args[0], Value: args[1]}
			if err := a.Repo.PutSetting(cmd.Context(), s); err != nil {
				return fmt.Errorf("failed to store setting: %w", err)
			}

			if a.Redis == nil {
				log.Warn().Msg("REDIS_URL not set, running instances keep their cached settings until restart")
				return nil
			}
			event := settings.ChangeEvent{Environment: settingsEnv, Key: args[0]}
			return settings.Publish(cmd.Context(), a.Redis, cfg.Redis.SettingsChannel, event)
		})
	},
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the settings of an environment",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			snap, err := settings.Load(cmd.Context(), a.Repo, settingsEnv)
			if err != nil {
				return err
			}
			intro, err := snap.Introspection()
			if err != nil {
				return err
			}
			intro.ClientSecret = "********"
			return printJSON(intro)
		})
	},
}

func registerSettingsCommand(root *cobra.Command) {
	root.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsSetCmd, settingsShowCmd)

	settingsCmd.PersistentFlags().StringVarP(&settingsEnv, "env", "e", "sandbox", "Settings environment (sandbox/production)")
}
