package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/goalpath/internal/db"
	"github.com/slack-go/slack"
)

// SlackSender 通过 incoming webhook 把提醒发到 Slack 频道
type SlackSender struct {
	client *http.Client
}

// NewSlackSender 构造 SlackSender，client 为空时使用默认客户端
func NewSlackSender(client *http.Client) *SlackSender {
	if client == nil {
		client = http.DefaultClient
	}
	return &SlackSender{client: client}
}

func (s *SlackSender) Dispatch(ctx context.Context, endpoint db.PushEndpoint, payload Payload) error {
	url := strings.TrimSpace(endpoint.WebhookURL)
	if url == "" {
		return errors.New("notify: slack webhook url is empty")
	}

	msg := &slack.WebhookMessage{Text: formatSlackText(payload)}
	if err := slack.PostWebhookCustomHTTPContext(ctx, url, s.client, msg); err != nil {
		return fmt.Errorf("notify: slack webhook: %w", err)
	}
	return nil
}

func formatSlackText(payload Payload) string {
	title := strings.TrimSpace(payload.Title)
	body := strings.TrimSpace(payload.Body)
	if title == "" {
		return body
	}
	if body == "" {
		return "*" + title + "*"
	}
	return "*" + title + "*\n" + body
}
