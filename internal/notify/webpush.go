package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/goalpath/internal/db"
)

const defaultWebPushTTL = 24 * 60 * 60

// WebPushConfig 保存 VAPID 相关配置
type WebPushConfig struct {
	PublicKey  string
	PrivateKey string
	Subscriber string
	TTL        int
	HTTPClient webpush.HTTPClient
}

// WebPushSender 通过标准 Web Push 协议投递
type WebPushSender struct {
	cfg WebPushConfig
}

// NewWebPushSender 构造 WebPushSender，密钥缺失时返回错误
func NewWebPushSender(cfg WebPushConfig) (*WebPushSender, error) {
	if strings.TrimSpace(cfg.PublicKey) == "" || strings.TrimSpace(cfg.PrivateKey) == "" {
		return nil, errors.New("notify: vapid keys are required for web push")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultWebPushTTL
	}
	return &WebPushSender{cfg: cfg}, nil
}

func (s *WebPushSender) Dispatch(ctx context.Context, endpoint db.PushEndpoint, payload Payload) error {
	if strings.TrimSpace(endpoint.Endpoint) == "" {
		return errors.New("notify: web push endpoint is empty")
	}

	message, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: encode payload: %w", err)
	}

	subscription := &webpush.Subscription{
		Endpoint: endpoint.Endpoint,
		Keys: webpush.Keys{
			P256dh: endpoint.Keys.P256dh,
			Auth:   endpoint.Keys.Auth,
		},
	}

	resp, err := webpush.SendNotificationWithContext(ctx, message, subscription, &webpush.Options{
		HTTPClient:      s.cfg.HTTPClient,
		Subscriber:      s.cfg.Subscriber,
		TTL:             s.cfg.TTL,
		VAPIDPublicKey:  s.cfg.PublicKey,
		VAPIDPrivateKey: s.cfg.PrivateKey,
	})
	if err != nil {
		return fmt.Errorf("notify: web push: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrEndpointGone
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notify: web push status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
