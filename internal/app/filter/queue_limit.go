package filter

import (
	"context"

	"github.com/osa030/19room/internal/domain/room"
	"github.com/osa030/19room/internal/domain/track"
)

// QueueLimitConfig represents the configuration for QueueLimitFilter.
type QueueLimitConfig struct {
	MaxLength int `yaml:"max_length" mapstructure:"max_length" default:"100" validate:"gte=1"`
}

// QueueLimitFilter caps how many songs may wait in a room's queue.
type QueueLimitFilter struct {
	maxLength int
}

func (f *QueueLimitFilter) Name() string {
	return "queue_limit_filter"
}

func (f *QueueLimitFilter) Description() string {
	return "Rejects new songs once the queue reaches max_length"
}

func (f *QueueLimitFilter) ReturnCodes() []string {
	return []string{"queue_full"}
}

func (f *QueueLimitFilter) ValidateConfig(settings map[string]any) error {
	var config QueueLimitConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.maxLength = config.MaxLength
	return nil
}

func (f *QueueLimitFilter) AppliesTo(op Operation, requesterType track.RequesterType) bool {
	return op == OpEnqueue
}

func (f *QueueLimitFilter) Check(ctx context.Context, req Request, r *room.Room) Result {
	if f.maxLength > 0 && len(r.Queue) >= f.maxLength {
		return Reject("queue_full")
	}
	return Accept()
}

func init() {
	Register("queue_limit_filter", func() Filter {
		return &QueueLimitFilter{}
	})
}
