package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Publisher broadcasts a serialized entity under a topic. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Topic is {tenant}/{action}/{resource}.
func Topic(tenant string, action Action, resource string) string {
	return fmt.Sprintf("%s/%s/%s", tenant, action, resource)
}

// ParseTopic splits a topic built by Topic.
func ParseTopic(topic string) (tenant string, action Action, resource string, err error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("malformed topic %q", topic)
	}
	return parts[0], Action(parts[1]), parts[2], nil
}

// Envelope wraps a change before it goes on the wire.
type Envelope struct {
	EventID      string          `json:"event_id"`
	Topic        string          `json:"topic"`
	EventVersion int             `json:"event_version"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Producer     string          `json:"producer"`
	Payload      json.RawMessage `json:"payload"`
}
