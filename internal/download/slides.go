package download

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"lectern/internal/fileutil"
	"lectern/internal/portal"
	"lectern/internal/slidepdf"
)

const (
	// Slide image fetches are launched with a small stagger so the image
	// host never sees the whole set at once.
	slideLaunchStagger = 50 * time.Millisecond
	// A failed image fetch gets one more chance after this pause.
	slideRetryDelay = time.Second
)

// DownloadSubjectSlides fetches the full slide image set of one lecture
// session into its own directory and, when enabled, composes the images into
// a single PDF. The set is all or nothing: on failure or cancellation the
// session directory is removed entirely so a later run starts clean.
func (e *Engine) DownloadSubjectSlides(ctx context.Context, subject portal.Subject) (string, error) {
	taskID := e.newID()
	name := fmt.Sprintf("%s-%s", subject.CourseName, subject.SubName)
	e.publish(Event{TaskID: taskID, Status: StatusPending, Name: name})

	if err := e.acquire(ctx); err != nil {
		e.publish(Event{TaskID: taskID, Status: StatusCanceled, Name: name})
		return taskID, err
	}
	defer e.release()

	flag := e.cancels.register(taskID)
	defer e.cancels.remove(taskID)

	urls := subject.SlideImageURLs
	if len(urls) == 0 {
		var err error
		urls, err = e.portal.SlideImageURLs(ctx, subject.CourseID, subject.SubID)
		if err != nil {
			e.publish(Event{TaskID: taskID, Status: StatusFailed, Name: name, Message: err.Error()})
			return taskID, err
		}
	}
	total := int64(len(urls))

	base := subject.Path
	if base == "" {
		base = filepath.Join(e.saveDir, fileutil.SanitizeName(subject.CourseName))
	}
	dir := filepath.Join(base, fileutil.SanitizeName(subject.SubName))
	imagesDir := filepath.Join(dir, "slide_images")

	imagePaths := make([]string, len(urls))
	for i, imageURL := range urls {
		imagePaths[i] = filepath.Join(imagesDir, fmt.Sprintf("%d%s", i+1, slideExt(imageURL)))
	}

	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			e.logger.Debug("slide set cleanup failed", "path", dir, "error", err)
		}
	}

	// Fetchers run concurrently; completion is polled in slide order so the
	// progress counter only ever moves forward.
	fetchCtx, stopFetchers := context.WithCancel(ctx)
	defer stopFetchers()
	results := make([]chan error, len(urls))
	for i := range urls {
		results[i] = make(chan error, 1)
		go func(imageURL, imagePath string, result chan<- error) {
			err := e.fetchSlide(fetchCtx, imageURL, imagePath)
			if err != nil {
				if err := e.sleep(fetchCtx, slideRetryDelay); err != nil {
					result <- err
					return
				}
				err = e.fetchSlide(fetchCtx, imageURL, imagePath)
			}
			result <- err
		}(urls[i], imagePaths[i], results[i])
		if err := e.sleep(ctx, slideLaunchStagger); err != nil {
			cleanup()
			e.publish(Event{TaskID: taskID, Status: StatusCanceled, Name: name, Total: total})
			return taskID, err
		}
	}

	var downloaded int64
	for i := range results {
		if flag.Load() {
			stopFetchers()
			cleanup()
			e.publish(Event{TaskID: taskID, Status: StatusCanceled, Name: name, Downloaded: downloaded, Total: total})
			return taskID, ErrCanceled
		}
		e.publish(Event{TaskID: taskID, Status: StatusDownloading, Name: name, Downloaded: downloaded, Total: total})
		if err := <-results[i]; err != nil {
			stopFetchers()
			cleanup()
			e.publish(Event{TaskID: taskID, Status: StatusFailed, Name: name, Downloaded: downloaded, Total: total, Message: err.Error()})
			return taskID, err
		}
		downloaded++
	}

	if flag.Load() {
		cleanup()
		e.publish(Event{TaskID: taskID, Status: StatusCanceled, Name: name, Downloaded: downloaded, Total: total})
		return taskID, ErrCanceled
	}

	if e.cfg.ComposePDF && len(urls) > 0 {
		e.publish(Event{TaskID: taskID, Status: StatusWriting, Name: name, Downloaded: downloaded, Total: total})
		pdfPath := filepath.Join(dir, fileutil.SanitizeName(name)+".pdf")
		if err := slidepdf.Compose(imagePaths, pdfPath); err != nil {
			cleanup()
			e.publish(Event{TaskID: taskID, Status: StatusFailed, Name: name, Downloaded: downloaded, Total: total, Message: err.Error()})
			return taskID, err
		}
	}

	e.publish(Event{TaskID: taskID, Status: StatusDone, Name: name, Downloaded: downloaded, Total: total})
	e.record(Record{
		TaskID:      taskID,
		Kind:        "slides",
		Name:        name,
		Path:        dir,
		Size:        total,
		CompletedAt: e.now(),
	})
	return taskID, nil
}

func (e *Engine) fetchSlide(ctx context.Context, imageURL, imagePath string) error {
	data, err := e.portal.FetchSlideImage(ctx, imageURL)
	if err != nil {
		return err
	}
	if err := fileutil.EnsureParentDir(imagePath); err != nil {
		return err
	}
	return os.WriteFile(imagePath, data, 0o644)
}

// slideExt picks the filename extension from the image URL, defaulting to
// .jpg when the URL has none.
func slideExt(imageURL string) string {
	ext := path.Ext(imageURL)
	if ext == "" {
		return ".jpg"
	}
	return ext
}
