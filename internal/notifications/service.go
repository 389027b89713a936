package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"splice/internal/config"
)

const userAgent = "Splice-Go/0.1.0"

// Service defines the notification surface exposed to the daemon.
type Service interface {
	NotifyRenderCompleted(ctx context.Context, jobName, outputPath string, duration time.Duration) error
	NotifyRenderFailed(ctx context.Context, jobName, reason string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint:     topic,
		client:       client,
		onCompletion: cfg.Notifications.Completion,
		onFailure:    cfg.Notifications.Failure,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint     string
	client       *http.Client
	onCompletion bool
	onFailure    bool
}

func (n *ntfyService) NotifyRenderCompleted(ctx context.Context, jobName, outputPath string, duration time.Duration) error {
	if !n.onCompletion {
		return nil
	}
	jobName = strings.TrimSpace(jobName)
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()
	if duration == 0 {
		durationText = "0s"
	}
	message := fmt.Sprintf("✅ Render complete: %s (%s)", jobName, durationText)
	if outputPath = strings.TrimSpace(outputPath); outputPath != "" {
		message = fmt.Sprintf("%s\nFile: %s", message, outputPath)
	}
	data := payload{
		title:   "Splice - Render Complete",
		message: message,
		tags:    []string{"splice", "render", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRenderFailed(ctx context.Context, jobName, reason string) error {
	if !n.onFailure {
		return nil
	}
	jobName = strings.TrimSpace(jobName)
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown error"
	}
	data := payload{
		title:    "Splice - Render Failed",
		message:  fmt.Sprintf("❌ Render failed: %s\n%s", jobName, reason),
		tags:     []string{"splice", "render", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Splice - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"splice", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyRenderCompleted(context.Context, string, string, time.Duration) error {
	return nil
}
func (noopService) NotifyRenderFailed(context.Context, string, string) error { return nil }
func (noopService) TestNotification(context.Context) error                   { return nil }
