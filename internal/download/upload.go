package download

import (
	"context"
	"path/filepath"

	"lectern/internal/fileutil"
	"lectern/internal/portal"
)

// DownloadUpload fetches one course attachment into dir. When skip-synced is
// enabled and a file of the expected size already exists, the task completes
// immediately without touching the network stream. The returned task id can
// be passed to Cancel while the download runs.
func (e *Engine) DownloadUpload(ctx context.Context, upload portal.Upload, dir string) (string, error) {
	taskID := e.newID()
	e.publish(Event{TaskID: taskID, Status: StatusPending, Name: upload.Name, Total: upload.Size})

	if err := e.acquire(ctx); err != nil {
		e.publish(Event{TaskID: taskID, Status: StatusCanceled, Name: upload.Name})
		return taskID, err
	}
	defer e.release()

	resp, name, err := e.portal.OpenUpload(ctx, upload.ReferenceID, upload.Name)
	if err != nil {
		e.publish(Event{TaskID: taskID, Status: StatusFailed, Name: upload.Name, Message: err.Error()})
		return taskID, err
	}

	total := resp.ContentLength
	if total <= 0 {
		total = upload.Size
	}
	path := filepath.Join(dir, fileutil.SanitizeName(name))

	if e.cfg.SkipSynced && fileutil.SizeMatches(path, total) {
		resp.Body.Close()
		e.logger.Debug("upload already synced", "task", taskID, "path", path)
		e.publish(Event{TaskID: taskID, Status: StatusDone, Name: name, Downloaded: total, Total: total})
		return taskID, nil
	}

	if err := e.streamToFile(taskID, name, resp, path, upload.Size); err != nil {
		return taskID, err
	}
	e.record(Record{
		TaskID:      taskID,
		Kind:        "upload",
		Name:        name,
		Path:        path,
		Size:        total,
		CompletedAt: e.now(),
	})
	return taskID, nil
}
