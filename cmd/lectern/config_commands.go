package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"lectern/internal/config"
)

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand())
	configCmd.AddCommand(newConfigValidateCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				target = config.DefaultConfigPath()
			}
			if overwrite {
				if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("remove existing config: %w", err)
				}
			}
			if err := config.WriteSample(target); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set save_dir and, if needed, a webhook or LLM key before syncing.")
			return nil
		},
	}

	cmd.Flags().StringVar(&targetPath, "path", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "show",
		Short:       "Print the resolved configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Root().PersistentFlags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			rows := [][]string{
				{"save_dir", cfg.Paths.SaveDir},
				{"log_dir", cfg.Paths.LogDir},
				{"cas_base_url", cfg.Portal.CASBaseURL},
				{"courses_base_url", cfg.Portal.CoursesBaseURL},
				{"classroom_base_url", cfg.Portal.ClassroomBaseURL},
				{"media_base_url", cfg.Portal.MediaBaseURL},
				{"search_base_url", cfg.Portal.SearchBaseURL},
				{"records_base_url", cfg.Portal.RecordsBaseURL},
				{"probe_url", cfg.Portal.ProbeURL},
				{"max_concurrent", fmt.Sprintf("%d", cfg.Download.MaxConcurrent)},
				{"compose_pdf", yesNo(cfg.Download.ComposePDF)},
				{"skip_synced", yesNo(cfg.Download.SkipSynced)},
				{"subtitles", yesNo(cfg.Subtitles.Enabled)},
				{"llm", yesNo(cfg.LLM.Enabled)},
				{"webhook", yesNo(strings.TrimSpace(cfg.Notifications.WebhookURL) != "")},
				{"log_level", cfg.Logging.Level},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Setting", "Value"}, rows,
				[]columnAlignment{alignLeft, alignLeft}))
			return nil
		},
	}
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate the configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Root().PersistentFlags().GetString("config")
			if _, err := config.Load(path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration valid")
			return nil
		},
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
