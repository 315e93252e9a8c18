// Package bus fans session events out to observers such as the terminal UI.
package bus

import (
	"log/slog"
	"reflect"
	"sync"

	"github.com/cskr/pubsub"
)

// Topics carried on the session bus.
const (
	TopicStatus     = "status"     // status.Line
	TopicConnection = "connection" // model.ConnectionEvent
	TopicFrame      = "frame"      // render.FrameInfo
	TopicTelemetry  = "telemetry"  // model.SystemStatus or model.SensorUpdate
	TopicEffect     = "effect"     // model.EffectToggled
	TopicDetection  = "detection"  // model.DetectionSummary
	TopicCamera     = "camera"     // bool, camera board link
	TopicControl    = "control"    // control.State
	TopicGallery    = "gallery"    // collab.Summary
)

// Subscription receives published messages until unsubscribed.
type Subscription chan any

// MessageBus is a topic based publish/subscribe hub.
type MessageBus interface {
	Publish(topic string, msg any)
	Subscribe(topics ...string) Subscription
	Unsubscribe(ch Subscription, topics ...string)
	Close()
}

// PubSubBus implements MessageBus over cskr/pubsub. Subscribers must keep draining
// their channel: a full subscription blocks publishers. Publishing after Close
// is a no-op.
type PubSubBus struct {
	ps     *pubsub.PubSub
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// New returns a bus with per-subscriber buffers of 128 messages.
func New(logger *slog.Logger) *PubSubBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &PubSubBus{
		ps:     pubsub.New(128),
		logger: logger,
	}
}

// Publish delivers msg to every subscriber of topic. It blocks while any of those
// subscribers has a full buffer.
func (b *PubSubBus) Publish(topic string, msg any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	b.logger.Debug("publish", "topic", topic, "payload_type", payloadType(msg))
	b.ps.Pub(msg, topic)
}

func (b *PubSubBus) Subscribe(topics ...string) Subscription {
	ch := b.ps.Sub(topics...)
	b.logger.Debug("subscribe", "topics", topics)
	return ch
}

func (b *PubSubBus) Unsubscribe(ch Subscription, topics ...string) {
	if len(topics) == 0 {
		b.ps.Unsub(ch)
		b.logger.Debug("unsubscribe", "mode", "all")
		return
	}
	b.ps.Unsub(ch, topics...)
	b.logger.Debug("unsubscribe", "topics", topics)
}

func (b *PubSubBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.ps.Shutdown()
}

func payloadType(v any) string {
	if v == nil {
		return "<nil>"
	}
	return reflect.TypeOf(v).String()
}
