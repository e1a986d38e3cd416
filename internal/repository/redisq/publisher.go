package redisq

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/yunojang/backend/internal/domain/entity"
)

// ProgressChannel names the broadcast topic carrying one project's progress
// events.
func ProgressChannel(projectID string) string {
	return "uploads:" + projectID
}

// ProgressPublisher broadcasts progress events over Redis pub/sub. Delivery
// is best-effort; transport failures are logged and discarded so progress
// reporting can never abort a pipeline stage.
type ProgressPublisher struct {
	client *redis.Client
}

func NewProgressPublisher(client *redis.Client) *ProgressPublisher {
	return &ProgressPublisher{client: client}
}

func (p *ProgressPublisher) Publish(ctx context.Context, projectID string, event entity.ProgressEvent) {
	if projectID == "" || p.client == nil {
		return
	}
	body, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := p.client.Publish(ctx, ProgressChannel(projectID), body).Err(); err != nil {
		log.Printf("progress publish failed for project %s: %v", projectID, err)
	}
}
