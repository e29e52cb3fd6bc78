package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lectern/internal/config"
	"lectern/internal/portal"
)

const userAgent = "lectern/0.1.0"

// Service defines the notification surface exposed to the sync and score
// watchers.
type Service interface {
	NotifyScore(ctx context.Context, score portal.Score, oldGPA, newGPA, oldCredits, newCredits float64) error
	NotifySyncCompleted(ctx context.Context, downloaded, skipped, failed int, duration time.Duration) error
	NotifyError(ctx context.Context, err error, operation string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a webhook-backed notification service. When no webhook
// URL is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	endpoint := strings.TrimSpace(cfg.Notifications.WebhookURL)
	if endpoint == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &webhookService{
		endpoint:     endpoint,
		client:       &http.Client{Timeout: timeout},
		scoreChanges: cfg.Notifications.ScoreChanges,
		errors:       cfg.Notifications.Errors,
	}
}

type webhookService struct {
	endpoint     string
	client       *http.Client
	scoreChanges bool
	errors       bool
}

func (w *webhookService) NotifyScore(ctx context.Context, score portal.Score, oldGPA, newGPA, oldCredits, newCredits float64) error {
	if !w.scoreChanges {
		return nil
	}
	text := fmt.Sprintf(
		"### 考试成绩通知\n - **选课课号**\t%s\n - **课程名称**\t%s\n - **成绩**\t%s\n - **学分**\t%s\n - **绩点**\t%s\n - **成绩变化**\t%.2f(%+.2f) / %.1f(%+.1f)",
		score.ClassCode, score.CourseName, score.Grade, score.Credit, score.GradePoint,
		newGPA, newGPA-oldGPA, newCredits, newCredits-oldCredits)
	return w.send(ctx, "考试成绩通知", text)
}

func (w *webhookService) NotifySyncCompleted(ctx context.Context, downloaded, skipped, failed int, duration time.Duration) error {
	text := fmt.Sprintf(
		"### 课件同步完成\n - **新下载**\t%d\n - **已同步**\t%d\n - **失败**\t%d\n - **用时**\t%s",
		downloaded, skipped, failed, duration.Round(time.Second))
	return w.send(ctx, "课件同步完成", text)
}

func (w *webhookService) NotifyError(ctx context.Context, err error, operation string) error {
	if !w.errors || err == nil {
		return nil
	}
	text := fmt.Sprintf("### 出错了\n - **操作**\t%s\n - **错误**\t%s", operation, err.Error())
	return w.send(ctx, "出错了", text)
}

func (w *webhookService) TestNotification(ctx context.Context) error {
	return w.send(ctx, "测试通知", "### 测试通知\nwebhook 配置正常。")
}

// send posts a DingTalk-compatible markdown message to the webhook.
func (w *webhookService) send(ctx context.Context, title, text string) error {
	body := map[string]any{
		"msgtype": "markdown",
		"markdown": map[string]string{
			"title": title,
			"text":  text,
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

type noopService struct{}

func (noopService) NotifyScore(context.Context, portal.Score, float64, float64, float64, float64) error {
	return nil
}

func (noopService) NotifySyncCompleted(context.Context, int, int, int, time.Duration) error {
	return nil
}

func (noopService) NotifyError(context.Context, error, string) error { return nil }

func (noopService) TestNotification(context.Context) error { return nil }
