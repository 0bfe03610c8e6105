package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/desertthunder/pulse/internal/models"
	"github.com/desertthunder/pulse/internal/shared"
)

// ColorCachePrefix namespaces persisted colors by entity id.
const ColorCachePrefix = "color-cache-"

// ColorCache maps an entity id to its extracted color.
//
// Entries never expire and are keyed by entity id only: a new image URL for a cached id
// still returns the old color.
type ColorCache struct {
	store Store
}

func NewColorCache(store Store) *ColorCache {
	return &ColorCache{store: store}
}

func colorKey(entityID string) string {
	return ColorCachePrefix + entityID
}

// Get returns the cached color or [shared.ErrCacheMiss].
//
// An unreadable entry is treated as a miss.
func (c *ColorCache) Get(ctx context.Context, entityID string) (models.RGB, error) {
	raw, err := c.store.Get(ctx, colorKey(entityID))
	if errors.Is(err, shared.ErrKeyNotFound) {
		return models.RGB{}, shared.ErrCacheMiss
	}
	if err != nil {
		return models.RGB{}, err
	}

	var rgb models.RGB
	if err := json.Unmarshal([]byte(raw), &rgb); err != nil {
		return models.RGB{}, fmt.Errorf("%w: corrupt entry for %s", shared.ErrCacheMiss, entityID)
	}
	return rgb, nil
}

// Set stores the color as a JSON [r,g,b] array.
func (c *ColorCache) Set(ctx context.Context, entityID string, rgb models.RGB) error {
	data, err := json.Marshal(rgb)
	if err != nil {
		return fmt.Errorf("failed to encode color: %w", err)
	}
	return c.store.Set(ctx, colorKey(entityID), string(data))
}

// Delete forgets one entity.
func (c *ColorCache) Delete(ctx context.Context, entityID string) error {
	return c.store.Delete(ctx, colorKey(entityID))
}

// Clear removes every cached color and returns how many were dropped.
func (c *ColorCache) Clear(ctx context.Context) (int, error) {
	return c.store.DeletePrefix(ctx, ColorCachePrefix)
}
