package summary

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lectern/internal/config"
)

type fakeCompleter struct {
	system string
	user   string
	reply  string
	err    error
}

func (f *fakeCompleter) Complete(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	f.system = systemPrompt
	f.user = userPrompt
	return f.reply, f.err
}

func enabledConfig() config.LLM {
	cfg := config.Default().LLM
	cfg.Enabled = true
	cfg.APIKey = "key"
	return cfg
}

func TestSummarizeSendsPromptAndTranscript(t *testing.T) {
	completer := &fakeCompleter{reply: "## Key points\n- scheduling"}
	writer := NewWriter(enabledConfig(), completer, nil)

	got, err := writer.Summarize(context.Background(), "Operating Systems", "Week 3", "today we cover scheduling")
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}
	if completer.system == "" || !strings.Contains(completer.system, "Summarize") {
		t.Fatalf("system prompt = %q", completer.system)
	}
	if !strings.Contains(completer.user, "Course: Operating Systems") ||
		!strings.Contains(completer.user, "today we cover scheduling") {
		t.Fatalf("user prompt = %q", completer.user)
	}
	if !strings.HasPrefix(got, "## Key points") {
		t.Fatalf("summary = %q", got)
	}
}

func TestSummarizeAddsHeadingWhenMissing(t *testing.T) {
	completer := &fakeCompleter{reply: "plain text notes"}
	writer := NewWriter(enabledConfig(), completer, nil)

	got, err := writer.Summarize(context.Background(), "OS", "Week 1", "transcript")
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}
	if !strings.HasPrefix(got, "# OS / Week 1\n\nplain text notes") {
		t.Fatalf("summary = %q", got)
	}
}

func TestSummarizeRequiresEnabledPass(t *testing.T) {
	cfg := enabledConfig()
	cfg.Enabled = false
	writer := NewWriter(cfg, &fakeCompleter{}, nil)
	if _, err := writer.Summarize(context.Background(), "OS", "W1", "text"); err == nil {
		t.Fatal("expected error when pass is disabled")
	}
	if writer.Enabled() {
		t.Fatal("Enabled must be false")
	}
}

func TestSummarizeRejectsEmptyTranscript(t *testing.T) {
	writer := NewWriter(enabledConfig(), &fakeCompleter{}, nil)
	if _, err := writer.Summarize(context.Background(), "OS", "W1", "  \n"); err == nil {
		t.Fatal("expected error for empty transcript")
	}
}

func TestSummarizePropagatesCompletionError(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("quota exceeded")}
	writer := NewWriter(enabledConfig(), completer, nil)
	if _, err := writer.Summarize(context.Background(), "OS", "W1", "text"); err == nil ||
		!strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("err = %v", err)
	}
}

func TestWriteStoresFile(t *testing.T) {
	writer := NewWriter(enabledConfig(), &fakeCompleter{}, nil)
	path := filepath.Join(t.TempDir(), "OS", "notes.md")
	if err := writer.Write(path, "# notes\n"); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "# notes\n" {
		t.Fatalf("content = %q", data)
	}
}
