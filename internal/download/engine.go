// Package download runs the concurrent download engine: attachment and
// recording streams, slide image sets, progress events, and cooperative
// cancellation.
package download

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"lectern/internal/config"
	"lectern/internal/fileutil"
	"lectern/internal/logging"
	"lectern/internal/portal"
	"lectern/internal/services"
)

// ErrCanceled is returned by download operations stopped through Cancel.
var ErrCanceled = errors.New("download canceled")

const streamChunkSize = 32 * 1024

// Engine schedules download tasks, bounded by the configured concurrency.
type Engine struct {
	portal   *portal.Client
	cfg      config.Download
	saveDir  string
	logger   *slog.Logger
	sink     Sink
	recorder Recorder

	sem     chan struct{}
	cancels *registry
	newID   func() string
	sleep   func(context.Context, time.Duration) error
	now     func() time.Time
}

// Option customizes the engine.
type Option func(*Engine)

// WithSink sets the progress event sink.
func WithSink(sink Sink) Option {
	return func(e *Engine) {
		if sink != nil {
			e.sink = sink
		}
	}
}

// WithRecorder sets the history recorder.
func WithRecorder(recorder Recorder) Option {
	return func(e *Engine) {
		if recorder != nil {
			e.recorder = recorder
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithSleeper overrides retry waits, for tests.
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(e *Engine) {
		if sleep != nil {
			e.sleep = sleep
		}
	}
}

// WithIDGenerator overrides task id generation, for tests.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) {
		if newID != nil {
			e.newID = newID
		}
	}
}

// NewEngine builds a download engine writing under saveDir.
func NewEngine(client *portal.Client, cfg config.Download, saveDir string, opts ...Option) *Engine {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	e := &Engine{
		portal:  client,
		cfg:     cfg,
		saveDir: saveDir,
		logger:  logging.NopLogger(),
		sink:    nopSink{},
		sem:     make(chan struct{}, cfg.MaxConcurrent),
		cancels: newRegistry(),
		newID:   uuid.NewString,
		sleep:   sleepContext,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SaveDir returns the root directory the engine writes under.
func (e *Engine) SaveDir() string {
	return e.saveDir
}

// Cancel requests cancellation of a running task. The task winds down at its
// next checkpoint, removes its partial output, and emits a canceled event.
func (e *Engine) Cancel(taskID string) bool {
	return e.cancels.cancel(taskID)
}

func (e *Engine) acquire(ctx context.Context) error {
	select {
	case e.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) release() {
	<-e.sem
}

func (e *Engine) publish(event Event) {
	e.sink.Publish(event)
}

func (e *Engine) record(rec Record) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.RecordDownload(rec); err != nil {
		e.logger.Warn("history record failed", "task", rec.TaskID, "error", err)
	}
}

// streamToFile copies the response body to path, publishing progress and
// honoring the task's cancel flag between chunks. On any failure or
// cancellation the partial file is removed. It emits exactly one terminal
// event.
func (e *Engine) streamToFile(taskID, name string, resp *http.Response, path string, expected int64) error {
	defer resp.Body.Close()

	total := resp.ContentLength
	if total <= 0 {
		total = expected
	}

	flag := e.cancels.register(taskID)
	defer e.cancels.remove(taskID)

	if err := fileutil.EnsureParentDir(path); err != nil {
		e.publish(Event{TaskID: taskID, Status: StatusFailed, Name: name, Total: total, Message: err.Error()})
		return services.Wrap(services.ErrTransient, "download", "create directory", err)
	}
	file, err := os.Create(path)
	if err != nil {
		e.publish(Event{TaskID: taskID, Status: StatusFailed, Name: name, Total: total, Message: err.Error()})
		return services.Wrap(services.ErrTransient, "download", "create file", err)
	}

	cleanup := func() {
		file.Close()
		if err := os.Remove(path); err != nil {
			e.logger.Debug("partial file cleanup failed", "path", path, "error", err)
		}
	}

	var downloaded int64
	buf := make([]byte, streamChunkSize)
	for {
		if flag.Load() {
			cleanup()
			e.publish(Event{TaskID: taskID, Status: StatusCanceled, Name: name, Downloaded: downloaded, Total: total})
			return ErrCanceled
		}
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := file.Write(buf[:n]); writeErr != nil {
				cleanup()
				e.publish(Event{TaskID: taskID, Status: StatusFailed, Name: name, Downloaded: downloaded, Total: total, Message: writeErr.Error()})
				return services.Wrap(services.ErrTransient, "download", "write file", writeErr)
			}
			downloaded += int64(n)
			e.publish(Event{TaskID: taskID, Status: StatusDownloading, Name: name, Downloaded: downloaded, Total: total})
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			cleanup()
			e.publish(Event{TaskID: taskID, Status: StatusFailed, Name: name, Downloaded: downloaded, Total: total, Message: readErr.Error()})
			return services.Wrap(services.ErrTransient, "download", "read stream", readErr)
		}
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		e.publish(Event{TaskID: taskID, Status: StatusFailed, Name: name, Downloaded: downloaded, Total: total, Message: err.Error()})
		return services.Wrap(services.ErrTransient, "download", "close file", err)
	}

	e.publish(Event{TaskID: taskID, Status: StatusDone, Name: name, Downloaded: downloaded, Total: downloaded})
	return nil
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
