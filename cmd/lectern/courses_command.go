package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"lectern/internal/portal"
)

func newCoursesCommand(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "courses",
		Short: "List enrolled courses",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.portalClient(cmd.Context())
			if err != nil {
				return err
			}
			courses, err := client.Courses(cmd.Context())
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(courses))
			for _, course := range courses {
				rows = append(rows, []string{
					fmt.Sprintf("%d", course.ID),
					course.CourseCode,
					course.Name,
					instructorNames(course.Instructors),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Code", "Name", "Instructors"}, rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft}))
			return nil
		},
	}
}

func instructorNames(instructors []portal.Instructor) string {
	names := make([]string, len(instructors))
	for i, instructor := range instructors {
		names[i] = instructor.Name
	}
	return strings.Join(names, ", ")
}
