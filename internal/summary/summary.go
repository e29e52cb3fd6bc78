// Package summary turns lecture caption transcripts into markdown study
// notes using a chat completion model.
package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"lectern/internal/config"
	"lectern/internal/fileutil"
	"lectern/internal/logging"
)

// Completer is the chat completion surface the writer needs.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Writer produces and stores lecture summaries.
type Writer struct {
	cfg    config.LLM
	client Completer
	logger *slog.Logger
}

// NewWriter builds a summary writer. A nil logger falls back to the no-op
// logger.
func NewWriter(cfg config.LLM, client Completer, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Writer{cfg: cfg, client: client, logger: logger}
}

// Enabled reports whether the summary pass is configured to run.
func (w *Writer) Enabled() bool {
	return w.cfg.Enabled && w.client != nil
}

// Summarize asks the model for a markdown summary of one lecture transcript.
func (w *Writer) Summarize(ctx context.Context, courseName, lectureName, transcript string) (string, error) {
	if !w.Enabled() {
		return "", errors.New("summarize: llm pass is disabled")
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return "", errors.New("summarize: empty transcript")
	}

	userPrompt := fmt.Sprintf("Course: %s\nLecture: %s\n\nTranscript:\n%s",
		courseName, lectureName, transcript)
	content, err := w.client.Complete(ctx, w.cfg.Prompt, userPrompt)
	if err != nil {
		return "", fmt.Errorf("summarize %s / %s: %w", courseName, lectureName, err)
	}

	body := strings.TrimSpace(content)
	heading := fmt.Sprintf("# %s / %s", courseName, lectureName)
	if !strings.HasPrefix(body, "#") {
		body = heading + "\n\n" + body
	}
	return body + "\n", nil
}

// Write stores a summary next to the lecture files.
func (w *Writer) Write(path, markdown string) error {
	if err := fileutil.WriteFileAtomic(path, []byte(markdown), 0o644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	w.logger.Info("summary written", "path", path)
	return nil
}
