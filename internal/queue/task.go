package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const TypeDeleteObject = "delete_object"

type Task struct {
	Type        string `json:"type"`
	ObjectKey   string `json:"objectKey"`
	AssetID     string `json:"assetId"`
	RequestedAt string `json:"requestedAt"`
}

func DeleteObjectTask(assetID, objectKey string, at time.Time) Task {
	return Task{
		Type:        TypeDeleteObject,
		ObjectKey:   objectKey,
		AssetID:     assetID,
		RequestedAt: at.UTC().Format(time.RFC3339),
	}
}

func (t Task) values() map[string]any {
	return map[string]any{
		"type":        t.Type,
		"objectKey":   t.ObjectKey,
		"assetId":     t.AssetID,
		"requestedAt": t.RequestedAt,
	}
}

func DecodeTask(values map[string]interface{}) Task {
	str := func(k string) string {
		if v, ok := values[k].(string); ok {
			return v
		}
		return ""
	}
	return Task{
		Type:        str("type"),
		ObjectKey:   str("objectKey"),
		AssetID:     str("assetId"),
		RequestedAt: str("requestedAt"),
	}
}

type Producer struct {
	client *redis.Client
	stream string
}

func NewProducer(client *redis.Client, stream string) *Producer {
	return &Producer{client: client, stream: stream}
}

func (p *Producer) Enqueue(ctx context.Context, task Task) (string, error) {
	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: task.values(),
	}).Result()
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", task.Type, err)
	}
	return id, nil
}
