package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"lectern/internal/history"
	"lectern/internal/notifications"
	"lectern/internal/portal"
)

func newScoreCommand(app *appContext) *cobra.Command {
	var notify bool

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Query academic records",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.portalClient(cmd.Context())
			if err != nil {
				return err
			}
			cfg, _ := app.ensureConfig()
			logger, _ := app.ensureLogger()

			done, err := client.EvaluationDone(cmd.Context())
			if err == nil && !done {
				fmt.Fprintln(cmd.ErrOrStderr(),
					"Course evaluation is not finished; some scores may be withheld.")
			}

			scores, err := client.Scores(cmd.Context())
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(scores))
			for _, score := range scores {
				rows = append(rows, []string{
					score.ClassCode,
					score.CourseName,
					score.Grade,
					score.Credit,
					score.GradePoint,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Class", "Course", "Grade", "Credit", "GP"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight}))
			fmt.Fprintf(out, "GPA %.2f over %.1f credits\n",
				portal.GPA(scores), portal.TotalCredits(scores))

			if !notify {
				return nil
			}

			store, err := history.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			previous, _, err := store.LatestScores(cmd.Context())
			if err != nil {
				return err
			}
			changed := history.DiffScores(previous, scores)
			if len(changed) > 0 {
				notifier := notifications.NewService(cfg)
				oldGPA, oldCredits := portal.GPA(previous), portal.TotalCredits(previous)
				newGPA, newCredits := portal.GPA(scores), portal.TotalCredits(scores)
				for _, score := range changed {
					if err := notifier.NotifyScore(cmd.Context(), score,
						oldGPA, newGPA, oldCredits, newCredits); err != nil {
						logger.Warn("score notification failed", "class", score.ClassCode, "error", err)
					}
				}
				fmt.Fprintf(out, "%d score change(s) notified\n", len(changed))
			}
			return store.SaveScores(cmd.Context(), scores, time.Now())
		},
	}

	cmd.Flags().BoolVar(&notify, "notify", false, "Compare with the last snapshot and notify changes")
	return cmd
}
