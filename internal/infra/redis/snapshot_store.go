package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"quizzy-service/internal/domain"
)

// SnapshotStore keeps the latest session snapshot per PIN in Redis. The
// TTL doubles as a liveness marker: a session that stops saving snapshots
// ages out on its own. In-memory session state stays authoritative; these
// writes exist for client re-sync and restart recovery only.
type SnapshotStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSnapshotStore(client *redis.Client, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{client: client, ttl: ttl}
}

func (s *SnapshotStore) Save(ctx context.Context, snap domain.SessionSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.key(snap.Pin), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *SnapshotStore) Load(ctx context.Context, pin string) (domain.SessionSnapshot, error) {
	raw, err := s.client.Get(ctx, s.key(pin)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.SessionSnapshot{}, domain.ErrGameNotFound
	}
	if err != nil {
		return domain.SessionSnapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	var snap domain.SessionSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return domain.SessionSnapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, nil
}

func (s *SnapshotStore) Delete(ctx context.Context, pin string) error {
	return s.client.Del(ctx, s.key(pin)).Err()
}

func (s *SnapshotStore) key(pin string) string {
	return "game:snapshot:" + pin
}
