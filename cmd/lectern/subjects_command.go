package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"lectern/internal/portal"
)

func newSubjectsCommand(app *appContext) *cobra.Command {
	var month string
	var start string
	var end string
	var courseID int64

	cmd := &cobra.Command{
		Use:   "subjects",
		Short: "List classroom lecture sessions",
		Long: "List lecture sessions by month (--month 2026-03), date range " +
			"(--start/--end), or classroom course (--course).",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.portalClient(cmd.Context())
			if err != nil {
				return err
			}

			var subjects []portal.Subject
			switch {
			case month != "":
				subjects, err = client.MonthSubjects(cmd.Context(), month)
			case start != "" && end != "":
				subjects, err = client.RangeSubjects(cmd.Context(), start, end)
			case courseID != 0:
				subjects, err = client.CourseSubjects(cmd.Context(), courseID)
			default:
				return errors.New("pass --month, --start/--end, or --course")
			}
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(subjects))
			for _, subject := range subjects {
				rows = append(rows, []string{
					fmt.Sprintf("%d", subject.CourseID),
					subject.CourseName,
					fmt.Sprintf("%d", subject.SubID),
					subject.SubName,
					subject.LecturerName,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Course ID", "Course", "Session ID", "Session", "Lecturer"}, rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft}))
			return nil
		},
	}

	cmd.Flags().StringVar(&month, "month", "", "List sessions of a month (2006-01)")
	cmd.Flags().StringVar(&start, "start", "", "Range start date (2006-01-02)")
	cmd.Flags().StringVar(&end, "end", "", "Range end date (2006-01-02)")
	cmd.Flags().Int64Var(&courseID, "course", 0, "List sessions of one classroom course")

	cmd.AddCommand(newSubjectsSearchCommand(app))
	return cmd
}

func newSubjectsSearchCommand(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "search <course-title> [teacher]",
		Short: "Search the classroom course catalog",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.portalClient(cmd.Context())
			if err != nil {
				return err
			}
			teacher := ""
			if len(args) == 2 {
				teacher = args[1]
			}
			results, err := client.SearchCourses(cmd.Context(), args[0], teacher)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(results))
			for _, result := range results {
				rows = append(rows, []string{
					fmt.Sprintf("%d", int64(result.ID)),
					result.Title,
					result.Realname,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Course ID", "Title", "Teacher"}, rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft}))
			return nil
		},
	}
}
