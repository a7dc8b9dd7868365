package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"rollcall/internal/swipe"
)

// ErrNotFound means the staged batch expired or never existed.
var ErrNotFound = errors.New("staged batch not found")

const keyPrefix = "rollcall:batch:"

// Stage holds parsed swipe batches in Redis between the upload request
// and the worker run, so the queue carries only an id.
type Stage struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStage creates a stage; batches expire after ttl.
func NewStage(client *redis.Client, ttl time.Duration) *Stage {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Stage{client: client, ttl: ttl}
}

// Put stores a batch and returns its id.
func (s *Stage) Put(ctx context.Context, events []swipe.Event) (string, error) {
	raw, err := json.Marshal(events)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	if err := s.client.Set(ctx, keyPrefix+id, raw, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("stage batch: %w", err)
	}
	return id, nil
}

// Get loads a staged batch.
func (s *Stage) Get(ctx context.Context, id string) ([]swipe.Event, error) {
	raw, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var events []swipe.Event
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, fmt.Errorf("decode staged batch %s: %w", id, err)
	}
	return events, nil
}

// Delete removes a processed batch. Missing keys are not an error.
func (s *Stage) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, keyPrefix+id).Err()
}
