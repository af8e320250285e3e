// Package notify delivers reminder payloads to a user's registered push endpoint.
// Delivery is "send or fail": senders return an error and never retry; callers decide
// whether a failure matters.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/goalpath/internal/db"
)

// ErrEndpointGone 表示推送服务明确告知订阅已失效（404/410）
var ErrEndpointGone = errors.New("push endpoint gone")

// Payload 是推送给客户端的消息体
type Payload struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data,omitempty"`
}

// Dispatcher 将一条消息投递到指定推送目标
type Dispatcher interface {
	Dispatch(ctx context.Context, endpoint db.PushEndpoint, payload Payload) error
}

// Router 按推送类型选择具体的 sender
type Router struct {
	mu      sync.RWMutex
	senders map[string]Dispatcher
}

// NewRouter 构造空路由，需通过 Register 注册各类型 sender
func NewRouter() *Router {
	return &Router{senders: make(map[string]Dispatcher)}
}

// Register 为指定类型注册 sender，重复注册会覆盖
func (r *Router) Register(kind string, sender Dispatcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[kind] = sender
}

// Dispatch 实现 Dispatcher
func (r *Router) Dispatch(ctx context.Context, endpoint db.PushEndpoint, payload Payload) error {
	kind := endpoint.EffectiveKind()

	r.mu.RLock()
	sender, ok := r.senders[kind]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("notify: no sender for kind %q", kind)
	}
	return sender.Dispatch(ctx, endpoint, payload)
}

// LogSender 只记录日志，用于未配置 VAPID 密钥的开发环境
type LogSender struct{}

func (LogSender) Dispatch(_ context.Context, endpoint db.PushEndpoint, payload Payload) error {
	log.Printf("[notify] (%s) %s: %s", endpoint.EffectiveKind(), payload.Title, payload.Body)
	return nil
}
