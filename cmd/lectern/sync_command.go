package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"lectern/internal/fileutil"
	"lectern/internal/notifications"
	"lectern/internal/portal"
)

func newSyncCommand(app *appContext) *cobra.Command {
	var courseID int64

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Download every course attachment that is missing locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _ := app.ensureConfig()

			// One sync per save directory at a time.
			lock := flock.New(filepath.Join(cfg.Paths.LogDir, "lectern.lock"))
			ok, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire sync lock: %w", err)
			}
			if !ok {
				return fmt.Errorf("another lectern sync is already running")
			}
			defer lock.Unlock()

			engine, store, err := app.newEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			client := engineClient(app)
			logger, _ := app.ensureLogger()
			notifier := notifications.NewService(cfg)

			courses, err := client.Courses(cmd.Context())
			if err != nil {
				return err
			}

			start := time.Now()
			var downloaded, skipped, failed int
			for _, course := range courses {
				if courseID != 0 && course.ID != courseID {
					continue
				}
				uploads, err := collectUploads(cmd, client, course.ID)
				if err != nil {
					logger.Warn("listing uploads failed", "course", course.Name, "error", err)
					failed++
					continue
				}
				dir := filepath.Join(cfg.Paths.SaveDir, fileutil.SanitizeName(course.Name))
				for _, upload := range uploads {
					local := filepath.Join(dir, fileutil.SanitizeName(upload.Name))
					if cfg.Download.SkipSynced && upload.Size > 0 && fileutil.SizeMatches(local, upload.Size) {
						skipped++
						continue
					}
					if _, err := engine.DownloadUpload(cmd.Context(), upload, dir); err != nil {
						if cmd.Context().Err() != nil {
							return cmd.Context().Err()
						}
						logger.Warn("download failed", "name", upload.Name, "error", err)
						failed++
						continue
					}
					downloaded++
				}
			}

			duration := time.Since(start)
			fmt.Fprintf(cmd.OutOrStdout(), "Synced %d files (%d already current, %d failed) in %s\n",
				downloaded, skipped, failed, duration.Round(time.Second))
			if err := notifier.NotifySyncCompleted(cmd.Context(), downloaded, skipped, failed, duration); err != nil {
				logger.Warn("sync notification failed", "error", err)
			}
			if failed > 0 {
				return fmt.Errorf("%d downloads failed", failed)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&courseID, "course", 0, "Sync a single course by id")
	return cmd
}

func collectUploads(cmd *cobra.Command, client *portal.Client, courseID int64) ([]portal.Upload, error) {
	activity, err := client.ActivityUploads(cmd.Context(), courseID)
	if err != nil {
		return nil, err
	}
	homework, err := client.HomeworkUploads(cmd.Context(), courseID)
	if err != nil {
		return nil, err
	}
	return append(activity, homework...), nil
}
