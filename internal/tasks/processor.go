package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"schoolhouse/api/internal/queue"
)

var ErrMissingObjectKey = errors.New("task has no object key")

type ObjectRemover interface {
	Remove(ctx context.Context, key string) error
}

type Processor struct {
	objects ObjectRemover
	logger  zerolog.Logger
}

func NewProcessor(objects ObjectRemover, logger zerolog.Logger) *Processor {
	return &Processor{
		objects: objects,
		logger:  logger.With().Str("component", "processor").Logger(),
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	task := queue.DecodeTask(msg.Values)

	switch task.Type {
	case queue.TypeDeleteObject:
		return p.handleDeleteObject(ctx, task)
	default:
		p.logger.Warn().Str("type", task.Type).Str("message_id", msg.ID).Msg("unknown task type")
		return nil
	}
}

func (p *Processor) handleDeleteObject(ctx context.Context, task queue.Task) error {
	if task.ObjectKey == "" {
		// Nothing to retry; acknowledge and move on.
		p.logger.Warn().Str("asset_id", task.AssetID).Msg("delete_object without key")
		return nil
	}
	if err := p.objects.Remove(ctx, task.ObjectKey); err != nil {
		return fmt.Errorf("delete object %s: %w", task.ObjectKey, err)
	}
	p.logger.Info().Str("asset_id", task.AssetID).Str("key", task.ObjectKey).Msg("media object removed")
	return nil
}
