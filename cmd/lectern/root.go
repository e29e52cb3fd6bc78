package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var usernameFlag string
	var passwordFlag string

	app := newAppContext(&configFlag, &usernameFlag, &passwordFlag)

	rootCmd := &cobra.Command{
		Use:           "lectern",
		Short:         "Course material download client for the university portal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := app.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVarP(&usernameFlag, "username", "u", "", "Portal account (defaults to $LECTERN_USERNAME)")
	rootCmd.PersistentFlags().StringVarP(&passwordFlag, "password", "p", "", "Portal password (defaults to $LECTERN_PASSWORD)")

	rootCmd.AddCommand(newConfigCommand())
	rootCmd.AddCommand(newLoginCommand(app))
	rootCmd.AddCommand(newCoursesCommand(app))
	rootCmd.AddCommand(newTodoCommand(app))
	rootCmd.AddCommand(newSubjectsCommand(app))
	rootCmd.AddCommand(newSlidesCommand(app))
	rootCmd.AddCommand(newPlaybackCommand(app))
	rootCmd.AddCommand(newSyncCommand(app))
	rootCmd.AddCommand(newScoreCommand(app))
	rootCmd.AddCommand(newHistoryCommand(app))
	rootCmd.AddCommand(newPDFCommand())
	rootCmd.AddCommand(newNotifyCommand(app))

	return rootCmd
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
