package memory

import (
	"context"
	"go.uber.org/zap"
	"sync"
)

type Message struct {
	Topic   string
	Payload []byte
}

// Bus records published changes and logs them when a logger is set.
type Bus struct {
	Log *zap.SugaredLogger

	mu   sync.Mutex
	msgs []Message
}

func (b *Bus) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	b.msgs = append(b.msgs, Message{Topic: topic, Payload: append([]byte(nil), payload...)})
	b.mu.Unlock()
	if b.Log != nil {
		b.Log.Debugw("change published", "topic", topic, "bytes", len(payload))
	}
	return nil
}

func (b *Bus) Messages() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Message(nil), b.msgs...)
}

func (b *Bus) Topics() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.msgs))
	for _, m := range b.msgs {
		out = append(out, m.Topic)
	}
	return out
}
