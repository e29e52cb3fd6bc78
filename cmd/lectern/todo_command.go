package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lectern/internal/ics"
)

func newTodoCommand(app *appContext) *cobra.Command {
	var icsPath string

	cmd := &cobra.Command{
		Use:   "todo",
		Short: "List pending deadlines",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.portalClient(cmd.Context())
			if err != nil {
				return err
			}
			todos, err := client.Todos(cmd.Context())
			if err != nil {
				return err
			}

			if icsPath != "" {
				cfg, _ := app.ensureConfig()
				if err := ics.Write(todos, cfg.Portal.CoursesBaseURL, icsPath); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", icsPath)
				return nil
			}

			rows := make([][]string, 0, len(todos))
			for _, todo := range todos {
				rows = append(rows, []string{
					todo.CourseName,
					todo.Title,
					todo.Type,
					todo.EndTime,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Course", "Title", "Type", "Due"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft}))
			return nil
		},
	}

	cmd.Flags().StringVar(&icsPath, "ics", "", "Export deadlines to an iCalendar file instead of printing")
	return cmd
}
