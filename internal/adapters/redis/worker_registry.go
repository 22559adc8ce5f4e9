// Package redis provides Redis-based adapters for the execd system.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Worker states published to the registry.
const (
	WorkerStateIdle    = "idle"
	WorkerStateRunning = "running"
)

// WorkerStatus is the heartbeat record a dispatcher worker publishes so
// operators can see which worker is busy with which task.
type WorkerStatus struct {
	WorkerID      string    `json:"worker_id"`
	State         string    `json:"state"`
	CurrentTaskNo string    `json:"current_task_no,omitempty"`
	CurrentShopID string    `json:"current_shop_id,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// WorkerRegistry is a Redis-backed view of live dispatcher workers.
// Entries expire on their own; a worker that stops heartbeating simply
// disappears instead of lingering as a stale record.
type WorkerRegistry struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewWorkerRegistry creates a worker registry with the default key prefix.
func NewWorkerRegistry(client redis.UniversalClient, ttl time.Duration) *WorkerRegistry {
	return NewWorkerRegistryWithPrefix(client, "worker:", ttl)
}

// NewWorkerRegistryWithPrefix creates a worker registry with a custom key prefix.
func NewWorkerRegistryWithPrefix(client redis.UniversalClient, prefix string, ttl time.Duration) *WorkerRegistry {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &WorkerRegistry{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Publish upserts the worker's status record, refreshing its TTL.
func (r *WorkerRegistry) Publish(ctx context.Context, status WorkerStatus) error {
	if status.WorkerID == "" {
		return errors.New("worker ID cannot be empty")
	}
	if status.UpdatedAt.IsZero() {
		status.UpdatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal worker status: %w", err)
	}

	key := r.prefix + status.WorkerID
	return r.client.Set(ctx, key, data, r.ttl).Err()
}

// Get returns one worker's status, or ErrNotFound when it has expired or
// never existed.
func (r *WorkerRegistry) Get(ctx context.Context, workerID string) (WorkerStatus, error) {
	if workerID == "" {
		return WorkerStatus{}, ErrNotFound
	}

	key := r.prefix + workerID
	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return WorkerStatus{}, ErrNotFound
		}
		return WorkerStatus{}, fmt.Errorf("redis get: %w", err)
	}

	var status WorkerStatus
	if unmarshalErr := json.Unmarshal([]byte(data), &status); unmarshalErr != nil {
		return WorkerStatus{}, fmt.Errorf("unmarshal worker status: %w", unmarshalErr)
	}

	return status, nil
}

// List scans the registry and returns every live worker's status.
// Records that fail to decode are skipped rather than failing the listing.
func (r *WorkerRegistry) List(ctx context.Context) ([]WorkerStatus, error) {
	var (
		cursor  uint64
		results []WorkerStatus
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan: %w", err)
		}

		for _, key := range keys {
			data, getErr := r.client.Get(ctx, key).Result()
			if getErr != nil {
				// Key expired between scan and get.
				if errors.Is(getErr, redis.Nil) {
					continue
				}
				return nil, fmt.Errorf("redis get %s: %w", key, getErr)
			}
			var status WorkerStatus
			if json.Unmarshal([]byte(data), &status) != nil {
				continue
			}
			results = append(results, status)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}
	return results, nil
}

// Remove deletes a worker's status record, typically on clean shutdown.
func (r *WorkerRegistry) Remove(ctx context.Context, workerID string) error {
	if workerID == "" {
		return nil // Nothing to delete
	}

	key := r.prefix + workerID
	return r.client.Del(ctx, key).Err()
}

// ErrNotFound is returned when a worker status record is not found.
type notFoundError struct{}

func (notFoundError) Error() string { return "worker status not found" }

var ErrNotFound error = notFoundError{}
