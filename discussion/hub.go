// =====================================================================================
// 📡 讨论事件 Hub：缓冲回放 + 实时扇出
// =====================================================================================
// 每个讨论持有一份完整的事件缓冲：晚加入的订阅者先收到回放，再接实时流。
// 扇出是非阻塞的——慢订阅者丢事件并计数，绝不拖住讨论主循环。
// =====================================================================================

package discussion

import (
	"sync"
	"time"

	"github.com/agorahq/agora/internal/metrics"
	"go.uber.org/zap"
)

// defaultSubscriberBuffer 单个订阅者的事件通道容量
const defaultSubscriberBuffer = 64

// Subscription 一个订阅者的事件流。
// C 在讨论被删除（Drop）时关闭；终态事件不会自动关闭通道，
// 由订阅方自行在终态事件后退出。
type Subscription struct {
	C <-chan Event

	ch           chan Event
	discussionID string
}

// DiscussionID 返回订阅的讨论 ID
func (s *Subscription) DiscussionID() string { return s.discussionID }

// Hub 管理所有讨论的事件缓冲与订阅者
type Hub struct {
	mu        sync.RWMutex
	buffers   map[string][]Event
	subs      map[string]map[*Subscription]struct{}
	subBuffer int

	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewHub 创建事件 Hub。collector 可为 nil（不记录指标）。
func NewHub(subBuffer int, collector *metrics.Collector, logger *zap.Logger) *Hub {
	if subBuffer <= 0 {
		subBuffer = defaultSubscriberBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		buffers:   make(map[string][]Event),
		subs:      make(map[string]map[*Subscription]struct{}),
		subBuffer: subBuffer,
		metrics:   collector,
		logger:    logger.With(zap.String("component", "discussion_hub")),
	}
}

// Publish 追加事件到讨论缓冲并扇出给所有订阅者。
// 序号从 1 开始，按讨论严格递增。
func (h *Hub) Publish(discussionID string, eventType EventType, data map[string]any) Event {
	h.mu.Lock()
	event := Event{
		Sequence:     len(h.buffers[discussionID]) + 1,
		Type:         eventType,
		DiscussionID: discussionID,
		Timestamp:    time.Now().UTC(),
		Data:         data,
	}
	h.buffers[discussionID] = append(h.buffers[discussionID], event)

	subs := make([]*Subscription, 0, len(h.subs[discussionID]))
	for sub := range h.subs[discussionID] {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.RecordDiscussionEvent(string(eventType))
	}

	for _, sub := range subs {
		select {
		case sub.ch <- event:
			if h.metrics != nil {
				h.metrics.RecordEventSent()
			}
		default:
			// 慢订阅者：丢弃而不是阻塞发布方
			if h.metrics != nil {
				h.metrics.RecordEventDropped()
			}
			h.logger.Warn("event dropped for slow subscriber",
				zap.String("discussion_id", discussionID),
				zap.Int("sequence", event.Sequence),
				zap.String("event_type", string(eventType)))
		}
	}
	return event
}

// Subscribe 订阅讨论事件，返回已缓冲事件的回放和实时订阅。
// 回放与订阅在同一把锁下建立，两者之间不会丢事件。
func (h *Hub) Subscribe(discussionID string) ([]Event, *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	replay := make([]Event, len(h.buffers[discussionID]))
	copy(replay, h.buffers[discussionID])

	sub := &Subscription{
		ch:           make(chan Event, h.subBuffer),
		discussionID: discussionID,
	}
	sub.C = sub.ch

	if h.subs[discussionID] == nil {
		h.subs[discussionID] = make(map[*Subscription]struct{})
	}
	h.subs[discussionID][sub] = struct{}{}

	if h.metrics != nil {
		h.metrics.SubscriberConnected()
	}
	return replay, sub
}

// Unsubscribe 移除订阅者并关闭其通道
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	subs, ok := h.subs[sub.discussionID]
	if ok {
		if _, live := subs[sub]; live {
			delete(subs, sub)
			close(sub.ch)
			if len(subs) == 0 {
				delete(h.subs, sub.discussionID)
			}
			if h.metrics != nil {
				defer h.metrics.SubscriberDisconnected()
			}
		}
	}
	h.mu.Unlock()
}

// Events 返回讨论的完整事件缓冲副本
func (h *Hub) Events(discussionID string) []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Event, len(h.buffers[discussionID]))
	copy(out, h.buffers[discussionID])
	return out
}

// EventCount 返回讨论已发布的事件数
func (h *Hub) EventCount(discussionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.buffers[discussionID])
}

// Clear 清空讨论的事件缓冲，订阅者保持连接。
// 序号会从 1 重新开始，因此只应在讨论终态后调用。
func (h *Hub) Clear(discussionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.buffers, discussionID)
}

// Drop 删除讨论的缓冲并关闭所有订阅者通道
func (h *Hub) Drop(discussionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[discussionID] {
		close(sub.ch)
		if h.metrics != nil {
			h.metrics.SubscriberDisconnected()
		}
	}
	delete(h.subs, discussionID)
	delete(h.buffers, discussionID)
}
