package download

import (
	"context"
	"fmt"
	"path/filepath"

	"lectern/internal/fileutil"
	"lectern/internal/portal"
)

// DownloadPlayback fetches the lecture recording of a session as an mp4
// alongside the session's other material.
func (e *Engine) DownloadPlayback(ctx context.Context, subject portal.Subject) (string, error) {
	taskID := e.newID()
	name := fmt.Sprintf("%s-%s.mp4", subject.CourseName, subject.SubName)
	e.publish(Event{TaskID: taskID, Status: StatusPending, Name: name})

	if err := e.acquire(ctx); err != nil {
		e.publish(Event{TaskID: taskID, Status: StatusCanceled, Name: name})
		return taskID, err
	}
	defer e.release()

	resp, err := e.portal.OpenPlayback(ctx, subject.CourseID, subject.SubID)
	if err != nil {
		e.publish(Event{TaskID: taskID, Status: StatusFailed, Name: name, Message: err.Error()})
		return taskID, err
	}

	base := subject.Path
	if base == "" {
		base = filepath.Join(e.saveDir, fileutil.SanitizeName(subject.CourseName))
	}
	path := filepath.Join(base, fileutil.SanitizeName(subject.SubName), fileutil.SanitizeName(name))

	if e.cfg.SkipSynced && resp.ContentLength > 0 && fileutil.SizeMatches(path, resp.ContentLength) {
		resp.Body.Close()
		e.logger.Debug("recording already synced", "task", taskID, "path", path)
		e.publish(Event{TaskID: taskID, Status: StatusDone, Name: name, Downloaded: resp.ContentLength, Total: resp.ContentLength})
		return taskID, nil
	}

	if err := e.streamToFile(taskID, name, resp, path, 0); err != nil {
		return taskID, err
	}
	e.record(Record{
		TaskID:      taskID,
		Kind:        "playback",
		Name:        name,
		Path:        path,
		Size:        resp.ContentLength,
		CompletedAt: e.now(),
	})
	return taskID, nil
}
