package redisstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"parkmeter/internal/models"
)

const snapshotKey = "parking:snapshot:active"

// SnapshotStore caches the scheduler's latest active-session snapshot in
// redis so presentation nodes can read it without touching the ledger.
// Advisory only: a cache failure never fails the publish.
type SnapshotStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotStore returns redis-backed store.
func NewSnapshotStore(client *redis.Client, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{client: client, ttl: ttl}
}

// Save caches the snapshot.
func (s *SnapshotStore) Save(ctx context.Context, snap models.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, snapshotKey, data, s.ttl).Err()
}

// Load returns the cached snapshot, or (nil, nil) when the cache is cold.
func (s *SnapshotStore) Load(ctx context.Context) (*models.Snapshot, error) {
	result, err := s.client.Get(ctx, snapshotKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var snap models.Snapshot
	if err := json.Unmarshal([]byte(result), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
