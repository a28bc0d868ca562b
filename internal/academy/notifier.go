package academy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const (
	maxRetries       = 3
	initialBackoff   = time.Second
	maxResponseBytes = 1 << 20
	defaultTimeout   = 10 * time.Second
)

// Message is one parent notification.
type Message struct {
	To          string `json:"to"`
	Text        string `json:"text"`
	StudentID   int64  `json:"studentId"`
	LessonLogID int64  `json:"lessonLogId"`
}

// Notifier delivers parent messages.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// LogNotifier logs messages instead of sending them.
type LogNotifier struct {
	Logger *slog.Logger
}

// Send implements Notifier.
func (n *LogNotifier) Send(_ context.Context, msg Message) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("academy: report message", "to", MaskPhone(msg.To), "lesson_log", msg.LessonLogID, "chars", len([]rune(msg.Text)))
	return nil
}

// HTTPNotifierConfig configures an HTTPNotifier.
type HTTPNotifierConfig struct {
	Endpoint     string
	APIKey       string
	SenderKey    string
	TemplateCode string
	Timeout      time.Duration
}

// HTTPNotifier posts messages as JSON to a messaging gateway.
type HTTPNotifier struct {
	cfg  HTTPNotifierConfig
	http *http.Client
}

// NewHTTPNotifier creates an HTTPNotifier.
func NewHTTPNotifier(cfg HTTPNotifierConfig) (*HTTPNotifier, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("academy: notifier endpoint is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &HTTPNotifier{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}, nil
}

type sendRequest struct {
	SenderKey    string `json:"senderKey,omitempty"`
	TemplateCode string `json:"templateCode,omitempty"`
	To           string `json:"to"`
	Text         string `json:"text"`
	Reference    string `json:"reference"`
}

// SendError is a non-2xx gateway response.
type SendError struct {
	Status int
	Body   string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("academy: messaging gateway returned %d: %s", e.Status, e.Body)
}

// Send implements Notifier. 429 responses are retried with backoff,
// honoring Retry-After.
func (n *HTTPNotifier) Send(ctx context.Context, msg Message) error {
	data, err := json.Marshal(sendRequest{
		SenderKey:    n.cfg.SenderKey,
		TemplateCode: n.cfg.TemplateCode,
		To:           msg.To,
		Text:         msg.Text,
		Reference:    "lesson-log-" + strconv.FormatInt(msg.LessonLogID, 10),
	})
	if err != nil {
		return fmt.Errorf("academy: marshal message: %w", err)
	}

	backoff := initialBackoff
	for attempt := range maxRetries {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.Endpoint, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("academy: create send request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if n.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+n.cfg.APIKey)
		}

		resp, err := n.http.Do(req)
		if err != nil {
			return fmt.Errorf("academy: send request failed: %w", err)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		_ = resp.Body.Close()
		if err != nil {
			return fmt.Errorf("academy: read send response: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < maxRetries-1 {
			wait := backoff
			if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs >= 0 {
				wait = time.Duration(secs) * time.Second
			}
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("academy: send: %w", ctx.Err())
			case <-timer.C:
			}
			backoff *= 2
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &SendError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
		}
		return nil
	}
	return fmt.Errorf("academy: send: max retries exceeded")
}
