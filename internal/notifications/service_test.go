package notifications_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"lectern/internal/config"
	"lectern/internal/notifications"
	"lectern/internal/portal"
)

type webhookCapture struct {
	mu     sync.Mutex
	bodies []string
	status int
}

func (c *webhookCapture) handler(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	c.mu.Lock()
	c.bodies = append(c.bodies, string(data))
	status := c.status
	c.mu.Unlock()
	if status != 0 {
		w.WriteHeader(status)
	}
}

func (c *webhookCapture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bodies)
}

func (c *webhookCapture) last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.bodies) == 0 {
		return ""
	}
	return c.bodies[len(c.bodies)-1]
}

func newService(t *testing.T, capture *webhookCapture, mutate func(*config.Config)) notifications.Service {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(capture.handler))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Notifications.WebhookURL = server.URL
	cfg.Notifications.ScoreChanges = true
	cfg.Notifications.Errors = true
	if mutate != nil {
		mutate(&cfg)
	}
	return notifications.NewService(&cfg)
}

func TestNotifyScoreSendsMarkdownPayload(t *testing.T) {
	capture := &webhookCapture{}
	svc := newService(t, capture, nil)

	score := portal.Score{
		ClassCode:  "(2025-2026-1)-CS101-01",
		CourseName: "Operating Systems",
		Grade:      "92",
		Credit:     "4",
		GradePoint: "4.2",
	}
	err := svc.NotifyScore(context.Background(), score, 4.0, 4.05, 40, 44)
	if err != nil {
		t.Fatalf("NotifyScore returned error: %v", err)
	}
	if capture.count() != 1 {
		t.Fatalf("webhook hit %d times, want 1", capture.count())
	}

	var payload struct {
		MsgType  string `json:"msgtype"`
		Markdown struct {
			Title string `json:"title"`
			Text  string `json:"text"`
		} `json:"markdown"`
	}
	if err := json.Unmarshal([]byte(capture.last()), &payload); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if payload.MsgType != "markdown" {
		t.Fatalf("msgtype = %q", payload.MsgType)
	}
	if payload.Markdown.Title != "考试成绩通知" {
		t.Fatalf("title = %q", payload.Markdown.Title)
	}
	for _, fragment := range []string{
		"### 考试成绩通知",
		"(2025-2026-1)-CS101-01",
		"Operating Systems",
		"4.05(+0.05) / 44.0(+4.0)",
	} {
		if !strings.Contains(payload.Markdown.Text, fragment) {
			t.Fatalf("text missing %q: %s", fragment, payload.Markdown.Text)
		}
	}
}

func TestNotifyScoreHonorsGate(t *testing.T) {
	capture := &webhookCapture{}
	svc := newService(t, capture, func(cfg *config.Config) {
		cfg.Notifications.ScoreChanges = false
	})

	err := svc.NotifyScore(context.Background(), portal.Score{ClassCode: "X"}, 0, 0, 0, 0)
	if err != nil {
		t.Fatalf("NotifyScore returned error: %v", err)
	}
	if capture.count() != 0 {
		t.Fatal("gated notification must not hit the webhook")
	}
}

func TestNotifyErrorHonorsGate(t *testing.T) {
	capture := &webhookCapture{}
	svc := newService(t, capture, func(cfg *config.Config) {
		cfg.Notifications.Errors = false
	})

	if err := svc.NotifyError(context.Background(), errors.New("boom"), "sync"); err != nil {
		t.Fatalf("NotifyError returned error: %v", err)
	}
	if capture.count() != 0 {
		t.Fatal("gated notification must not hit the webhook")
	}
}

func TestSendReportsHTTPErrorStatus(t *testing.T) {
	capture := &webhookCapture{status: http.StatusBadGateway}
	svc := newService(t, capture, nil)

	err := svc.NotifySyncCompleted(context.Background(), 3, 10, 0, 42*time.Second)
	if err == nil {
		t.Fatal("expected error for 502 response")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Fatalf("error does not mention status: %v", err)
	}
}

func TestNoopServiceWithoutWebhookURL(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.WebhookURL = ""
	svc := notifications.NewService(&cfg)

	if err := svc.TestNotification(context.Background()); err != nil {
		t.Fatalf("noop TestNotification returned error: %v", err)
	}
	if err := svc.NotifyError(context.Background(), errors.New("boom"), "op"); err != nil {
		t.Fatalf("noop NotifyError returned error: %v", err)
	}
}
