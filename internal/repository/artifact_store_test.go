package repository

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"StockPulse/internal/domain/errs"
	"StockPulse/internal/domain/models"
	domrepo "StockPulse/internal/domain/repository"
	"StockPulse/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// artifact builds a bundle whose every field is derived from gen, so a mixed
// read is detectable.
func artifact(itemID string, gen int) *models.ModelArtifact {
	nodes := make([]models.TreeNode, 0, 200)
	for i := 0; i < 200; i++ {
		nodes = append(nodes, models.TreeNode{Feature: -1, Value: float64(gen)})
	}
	return &models.ModelArtifact{
		ItemID:    itemID,
		Regressor: models.ForestState{Trees: []models.TreeState{{Nodes: nodes}}},
		Scaler:    models.ScalerState{Mean: []float64{float64(gen)}, Scale: []float64{1}},
		Samples:   gen,
		TrainedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func consistent(t *testing.T, a *models.ModelArtifact) {
	t.Helper()
	gen := float64(a.Samples)
	assert.Equal(t, gen, a.Scaler.Mean[0])
	for _, n := range a.Regressor.Trees[0].Nodes {
		if n.Value != gen {
			t.Errorf("mixed artifact: samples=%d node=%v", a.Samples, n.Value)
			return
		}
	}
}

func stores(t *testing.T) map[string]domrepo.ArtifactStore {
	fs, err := NewFileArtifactStore(t.TempDir())
	require.NoError(t, err)
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })
	return map[string]domrepo.ArtifactStore{
		"file": fs,
		"kv":   NewKVArtifactStore(mc, time.Second),
	}
}

func TestArtifactStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		require.NoError(t, s.Put(ctx, "sku-1", artifact("sku-1", 3)), name)
		got, err := s.Get(ctx, "sku-1")
		require.NoError(t, err, name)
		assert.Equal(t, artifact("sku-1", 3), got, name)
	}
}

func TestArtifactStoreNotFound(t *testing.T) {
	for name, s := range stores(t) {
		_, err := s.Get(context.Background(), "never-trained")
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, errs.ErrNotFound), name)
		assert.Contains(t, err.Error(), "never-trained", name)
	}
}

func TestArtifactStoreRejectsUnsafeIDs(t *testing.T) {
	for name, s := range stores(t) {
		for _, id := range []string{"", "..", "../etc/passwd", "a/b", strings.Repeat("x", 129)} {
			err := s.Put(context.Background(), id, artifact(id, 1))
			assert.True(t, errors.Is(err, errs.ErrValidation), "%s %q", name, id)
		}
	}
}

func TestFileArtifactStoreOverwriteKeepsOneBundle(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileArtifactStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "sku-1", artifact("sku-1", 1)))
	require.NoError(t, s.Put(ctx, "sku-1", artifact("sku-1", 2)))
	require.NoError(t, s.Put(ctx, "sku-2", artifact("sku-2", 1)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temp files or stale bundles remain")

	ids, err := s.Items()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"sku-1", "sku-2"}, ids)

	got, err := s.Get(ctx, "sku-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Samples)
}

func TestArtifactStoreConcurrentWritersAndReaders(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		require.NoError(t, s.Put(ctx, "hot", artifact("hot", 0)))

		var wg sync.WaitGroup
		for w := 1; w <= 8; w++ {
			wg.Add(1)
			go func(gen int) {
				defer wg.Done()
				assert.NoError(t, s.Put(ctx, "hot", artifact("hot", gen)))
			}(w)
		}
		for r := 0; r < 8; r++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 20; i++ {
					a, err := s.Get(ctx, "hot")
					if assert.NoError(t, err, name) {
						consistent(t, a)
					}
				}
			}()
		}
		wg.Wait()

		final, err := s.Get(ctx, "hot")
		require.NoError(t, err)
		consistent(t, final)
		assert.NotZero(t, final.Samples, name)
	}
}

func TestFileArtifactStoreDropsIdleLocks(t *testing.T) {
	s, err := NewFileArtifactStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), "a", artifact("a", 1)))
	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Empty(t, s.locks)
}
