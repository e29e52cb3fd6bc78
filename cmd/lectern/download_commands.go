package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"lectern/internal/download"
	"lectern/internal/fileutil"
	"lectern/internal/history"
	"lectern/internal/portal"
	"lectern/internal/services"
	"lectern/internal/services/llm"
	"lectern/internal/subtitle"
	"lectern/internal/summary"
)

// newEngine logs in and wires the download engine with the progress sink and
// the history recorder. The caller closes the returned store.
func (a *appContext) newEngine(ctx context.Context) (*download.Engine, *history.Store, error) {
	client, err := a.portalClient(ctx)
	if err != nil {
		return nil, nil, err
	}
	cfg, _ := a.ensureConfig()
	logger, err := a.ensureLogger()
	if err != nil {
		return nil, nil, err
	}
	store, err := history.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	engine := download.NewEngine(client, cfg.Download, cfg.Paths.SaveDir,
		download.WithSink(newProgressSink(os.Stderr)),
		download.WithRecorder(store),
		download.WithLogger(logger))
	return engine, store, nil
}

// resolveSubject looks up the session names so downloads land in readable
// directories.
func resolveSubject(ctx context.Context, client *portal.Client, courseID, subID int64) (portal.Subject, error) {
	subjects, err := client.CourseSubjects(ctx, courseID)
	if err != nil {
		return portal.Subject{}, err
	}
	for _, subject := range subjects {
		if subject.SubID == subID {
			return subject, nil
		}
	}
	return portal.Subject{}, services.Wrap(services.ErrNotFound, "resolve subject",
		fmt.Sprintf("course %d has no session %d", courseID, subID), nil)
}

func newSlidesCommand(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "slides <course-id> <session-id>",
		Short: "Download the slide images of a lecture session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			courseID, subID, err := parseIDArgs(args)
			if err != nil {
				return err
			}
			engine, store, err := app.newEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			subject, err := resolveSubject(cmd.Context(), engineClient(app), courseID, subID)
			if err != nil {
				return err
			}
			_, err = engine.DownloadSubjectSlides(cmd.Context(), subject)
			return err
		},
	}
}

func newPlaybackCommand(app *appContext) *cobra.Command {
	var withSubtitles bool
	var withSummary bool

	cmd := &cobra.Command{
		Use:   "playback <course-id> <session-id>",
		Short: "Download the lecture recording of a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			courseID, subID, err := parseIDArgs(args)
			if err != nil {
				return err
			}
			engine, store, err := app.newEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			cfg, _ := app.ensureConfig()

			subject, err := resolveSubject(cmd.Context(), engineClient(app), courseID, subID)
			if err != nil {
				return err
			}
			if _, err := engine.DownloadPlayback(cmd.Context(), subject); err != nil {
				return err
			}

			if withSubtitles || cfg.Subtitles.Enabled {
				if _, err := engine.DownloadSubtitles(cmd.Context(), subject, cfg.Subtitles); err != nil &&
					!errors.Is(err, services.ErrNotFound) {
					return err
				}
			}
			if withSummary || cfg.LLM.Enabled {
				if err := summarizeSubject(cmd.Context(), app, subject); err != nil {
					return err
				}
			}
			return nil
		},
		Args: cobra.ExactArgs(2),
	}

	cmd.Flags().BoolVar(&withSubtitles, "subtitles", false, "Also download caption tracks")
	cmd.Flags().BoolVar(&withSummary, "summary", false, "Also write an LLM summary of the captions")
	return cmd
}

// summarizeSubject builds a markdown summary from the first caption track
// that exists and stores it next to the recording.
func summarizeSubject(ctx context.Context, app *appContext, subject portal.Subject) error {
	cfg, _ := app.ensureConfig()
	if !cfg.LLM.Enabled {
		return errors.New("llm summarization is not enabled in the config")
	}
	client := engineClient(app)
	logger, _ := app.ensureLogger()

	var cues []subtitle.Cue
	for _, language := range cfg.Subtitles.Languages {
		segments, err := client.SubtitleSegments(ctx, subject.CourseID, subject.SubID, language)
		if errors.Is(err, services.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		cues = subtitle.FromSegments(segments)
		break
	}
	if len(cues) == 0 {
		return services.Wrap(services.ErrNotFound, "summarize",
			fmt.Sprintf("session %d has no caption track to summarize", subject.SubID), nil)
	}

	writer := summary.NewWriter(cfg.LLM, llm.NewClient(cfg.LLM), logger)
	markdown, err := writer.Summarize(ctx, subject.CourseName, subject.SubName, subtitle.Transcript(cues))
	if err != nil {
		return err
	}
	base := filepath.Join(cfg.Paths.SaveDir,
		fileutil.SanitizeName(subject.CourseName),
		fileutil.SanitizeName(subject.SubName))
	name := fileutil.SanitizeName(fmt.Sprintf("%s-%s.summary.md", subject.CourseName, subject.SubName))
	return writer.Write(filepath.Join(base, name), markdown)
}

func engineClient(app *appContext) *portal.Client {
	_, client, _ := app.buildSession()
	return client
}

func parseIDArgs(args []string) (int64, int64, error) {
	var courseID, subID int64
	if _, err := fmt.Sscanf(args[0], "%d", &courseID); err != nil {
		return 0, 0, fmt.Errorf("parse course id %q: %w", args[0], err)
	}
	if _, err := fmt.Sscanf(args[1], "%d", &subID); err != nil {
		return 0, 0, fmt.Errorf("parse session id %q: %w", args[1], err)
	}
	return courseID, subID, nil
}
