package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"StockPulse/internal/domain/errs"
	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/repository"
	"StockPulse/pkg/cache"
)

// KVArtifactStore keeps artifacts in a cache.Service, Redis in production.
// A single SET publishes the whole bundle; a SETNX lock keeps one writer per
// item across replicas.
type KVArtifactStore struct {
	kv      cache.Service
	lockTTL time.Duration
}

func NewKVArtifactStore(kv cache.Service, lockTTL time.Duration) *KVArtifactStore {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &KVArtifactStore{kv: kv, lockTTL: lockTTL}
}

func artifactKey(itemID string) string { return cache.Key("artifact", itemID) }
func lockKey(itemID string) string     { return cache.Key("lock:artifact", itemID) }

func (s *KVArtifactStore) Put(ctx context.Context, itemID string, a *models.ModelArtifact) error {
	if err := ValidateItemID(itemID); err != nil {
		return err
	}
	release, err := cache.Lock(ctx, s.kv, lockKey(itemID), s.lockTTL, 25*time.Millisecond)
	if err != nil {
		return fmt.Errorf("lock artifact %s: %w", itemID, err)
	}
	defer release()

	if err := s.kv.Set(ctx, artifactKey(itemID), a, 0); err != nil {
		return fmt.Errorf("store artifact %s: %w", itemID, err)
	}
	return nil
}

func (s *KVArtifactStore) Get(ctx context.Context, itemID string) (*models.ModelArtifact, error) {
	if err := ValidateItemID(itemID); err != nil {
		return nil, err
	}
	var a models.ModelArtifact
	if err := s.kv.Get(ctx, artifactKey(itemID), &a); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, errs.NotFound("No model found for item %s", itemID)
		}
		return nil, fmt.Errorf("load artifact %s: %w", itemID, err)
	}
	return &a, nil
}

var _ repository.ArtifactStore = (*KVArtifactStore)(nil)
