package discussion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishAssignsSequence(t *testing.T) {
	hub := NewHub(0, nil, nil)

	e1 := hub.Publish("d1", EventDiscussionStart, map[string]any{"task": "design"})
	e2 := hub.Publish("d1", EventRoundStart, map[string]any{"round": 1})
	other := hub.Publish("d2", EventDiscussionStart, nil)

	assert.Equal(t, 1, e1.Sequence)
	assert.Equal(t, 2, e2.Sequence)
	assert.Equal(t, 1, other.Sequence)
	assert.Equal(t, 2, hub.EventCount("d1"))
	assert.Equal(t, 1, hub.EventCount("d2"))
}

func TestHub_SubscribeReplaysBufferedEvents(t *testing.T) {
	hub := NewHub(0, nil, nil)
	hub.Publish("d1", EventDiscussionStart, nil)
	hub.Publish("d1", EventRoundStart, map[string]any{"round": 1})

	replay, sub := hub.Subscribe("d1")
	defer hub.Unsubscribe(sub)

	require.Len(t, replay, 2)
	assert.Equal(t, EventDiscussionStart, replay[0].Type)
	assert.Equal(t, EventRoundStart, replay[1].Type)
	assert.Equal(t, 1, replay[0].Sequence)
	assert.Equal(t, 2, replay[1].Sequence)
}

func TestHub_SubscriberReceivesLiveEvents(t *testing.T) {
	hub := NewHub(0, nil, nil)
	replay, sub := hub.Subscribe("d1")
	defer hub.Unsubscribe(sub)
	require.Empty(t, replay)

	hub.Publish("d1", EventAgentResponse, map[string]any{"response": "hello"})

	event := <-sub.C
	assert.Equal(t, EventAgentResponse, event.Type)
	assert.Equal(t, 1, event.Sequence)
	assert.Equal(t, "hello", event.Data["response"])
}

func TestHub_ReplayAndLiveHaveNoGap(t *testing.T) {
	hub := NewHub(0, nil, nil)
	hub.Publish("d1", EventDiscussionStart, nil)

	replay, sub := hub.Subscribe("d1")
	defer hub.Unsubscribe(sub)
	hub.Publish("d1", EventRoundStart, nil)

	live := <-sub.C
	assert.Equal(t, replay[len(replay)-1].Sequence+1, live.Sequence)
}

func TestHub_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(1, nil, nil)
	_, sub := hub.Subscribe("d1")
	defer hub.Unsubscribe(sub)

	// 通道容量 1：第二条事件必须被丢弃而不是阻塞
	hub.Publish("d1", EventRoundStart, map[string]any{"round": 1})
	hub.Publish("d1", EventRoundStart, map[string]any{"round": 2})

	first := <-sub.C
	assert.Equal(t, 1, first.Sequence)
	select {
	case _, ok := <-sub.C:
		assert.False(t, ok, "no further event expected")
	default:
	}

	// 缓冲仍然完整，轮询端可以补齐
	assert.Len(t, hub.Events("d1"), 2)
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub(0, nil, nil)
	_, sub := hub.Subscribe("d1")

	hub.Unsubscribe(sub)
	_, ok := <-sub.C
	assert.False(t, ok)

	// 重复退订不会 panic
	hub.Unsubscribe(sub)
}

func TestHub_DropClosesSubscribersAndClearsBuffer(t *testing.T) {
	hub := NewHub(0, nil, nil)
	hub.Publish("d1", EventDiscussionStart, nil)
	_, sub1 := hub.Subscribe("d1")
	_, sub2 := hub.Subscribe("d1")

	hub.Drop("d1")

	_, ok1 := <-sub1.C
	_, ok2 := <-sub2.C
	assert.False(t, ok1)
	assert.False(t, ok2)
	assert.Empty(t, hub.Events("d1"))
	assert.Zero(t, hub.EventCount("d1"))
}
