package changelog

import (
	"context"
	"fmt"
	"github.com/ariefcatur/go-catalog-orders/internal/events"
	kafkax "github.com/ariefcatur/go-catalog-orders/internal/kafka"
	"github.com/ariefcatur/go-catalog-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Entry is what gets logged for one change.
type Entry struct {
	EventID  string
	Tenant   string
	Action   events.Action
	Resource string
	ID       string
}

type Service struct {
	Redis       redis.Cmdable // nil disables dedup
	Log         *zap.SugaredLogger
	ServiceName string
	// Sink receives every new entry after it is logged; optional.
	Sink func(Entry)
}

// HandleChange dipasang sebagai handler consumer.
func (s *Service) HandleChange(ctx context.Context, m kafkago.Message) error {
	// 1) decode envelope
	env, err := kafkax.UnmarshalEnvelope(m)
	if err != nil {
		s.Log.Warnw("dropping undecodable change", "offset", m.Offset, "error", err)
		return nil
	}
	tenant, action, resource, err := events.ParseTopic(env.Topic)
	if err != nil {
		s.Log.Warnw("dropping change with bad topic", "event", env.EventID, "error", err)
		return nil
	}

	// 2) dedup via Redis (pakai event_id)
	if s.Redis != nil && env.EventID != "" {
		fresh, err := redisx.Claim(ctx, s.Redis, fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID), redisx.TTLDedup)
		if err != nil {
			return err
		}
		if !fresh {
			return nil
		}
	}

	// 3) decode payload secukupnya
	body, err := kafkax.UnwrapPayload[struct {
		ID string `json:"id"`
	}](env.Payload)
	if err != nil {
		s.Log.Warnw("change payload without id", "event", env.EventID, "error", err)
	}

	e := Entry{EventID: env.EventID, Tenant: tenant, Action: action, Resource: resource, ID: body.ID}
	s.Log.Infow("change",
		"topic", env.Topic,
		"tenant", e.Tenant,
		"action", e.Action,
		"resource", e.Resource,
		"id", e.ID,
		"producer", env.Producer,
		"occurred_at", env.OccurredAt,
	)
	if s.Sink != nil {
		s.Sink(e)
	}
	return nil
}
