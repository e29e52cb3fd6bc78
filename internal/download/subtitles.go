package download

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"lectern/internal/config"
	"lectern/internal/fileutil"
	"lectern/internal/portal"
	"lectern/internal/services"
	"lectern/internal/subtitle"
)

// DownloadSubtitles fetches the caption tracks of a session and writes one
// file per configured language next to the recording. Languages without a
// track are skipped; the task fails only when every language is missing or a
// fetch fails outright.
func (e *Engine) DownloadSubtitles(ctx context.Context, subject portal.Subject, cfg config.Subtitles) (string, error) {
	taskID := e.newID()
	name := fmt.Sprintf("%s-%s subtitles", subject.CourseName, subject.SubName)
	e.publish(Event{TaskID: taskID, Status: StatusPending, Name: name})

	if err := e.acquire(ctx); err != nil {
		e.publish(Event{TaskID: taskID, Status: StatusCanceled, Name: name})
		return taskID, err
	}
	defer e.release()

	base := subject.Path
	if base == "" {
		base = filepath.Join(e.saveDir, fileutil.SanitizeName(subject.CourseName))
	}
	dir := filepath.Join(base, fileutil.SanitizeName(subject.SubName))
	stem := fileutil.SanitizeName(fmt.Sprintf("%s-%s", subject.CourseName, subject.SubName))

	written := 0
	for _, language := range cfg.Languages {
		segments, err := e.portal.SubtitleSegments(ctx, subject.CourseID, subject.SubID, language)
		if errors.Is(err, services.ErrNotFound) {
			e.logger.Debug("no caption track", "task", taskID, "language", language)
			continue
		}
		if err != nil {
			e.publish(Event{TaskID: taskID, Status: StatusFailed, Name: name, Message: err.Error()})
			return taskID, err
		}

		content, ext, err := subtitle.Render(subtitle.FromSegments(segments), cfg.Format, true)
		if err != nil {
			e.publish(Event{TaskID: taskID, Status: StatusFailed, Name: name, Message: err.Error()})
			return taskID, err
		}
		path := filepath.Join(dir, fmt.Sprintf("%s.%s%s", stem, language, ext))
		if err := fileutil.WriteFileAtomic(path, []byte(content), 0o644); err != nil {
			e.publish(Event{TaskID: taskID, Status: StatusFailed, Name: name, Message: err.Error()})
			return taskID, services.Wrap(services.ErrTransient, "subtitles", "write track", err)
		}
		e.record(Record{
			TaskID:      taskID,
			Kind:        "subtitle",
			Name:        filepath.Base(path),
			Path:        path,
			Size:        int64(len(content)),
			CompletedAt: e.now(),
		})
		written++
	}

	if written == 0 {
		err := services.Wrap(services.ErrNotFound, "subtitles",
			fmt.Sprintf("session %d has no caption tracks", subject.SubID), nil)
		e.publish(Event{TaskID: taskID, Status: StatusFailed, Name: name, Message: err.Error()})
		return taskID, err
	}

	e.publish(Event{TaskID: taskID, Status: StatusDone, Name: name, Downloaded: int64(written), Total: int64(written)})
	return taskID, nil
}
