package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/Osiyomeoh/CoreYield-sub001/internal/domain"
)

// positionTTL bounds how stale a cached projection can get before readers
// fall through to a fresh chain snapshot.
const positionTTL = 2 * time.Minute

// PositionCache implements domain.PositionCache using JSON-serialized
// Position values.
//
// Key schema:
//
//	position:{wallet}:{asset} - JSON-encoded domain.Position
type PositionCache struct {
	rdb *redis.Client
}

var _ domain.PositionCache = (*PositionCache)(nil)

// NewPositionCache creates a PositionCache backed by the given Client.
func NewPositionCache(c *Client) *PositionCache {
	return &PositionCache{rdb: c.Underlying()}
}

func positionKey(wallet common.Address, assetKey string) string {
	return "position:" + strings.ToLower(wallet.Hex()) + ":" + assetKey
}

// Set stores a position projection with the standard TTL.
func (pc *PositionCache) Set(ctx context.Context, pos domain.Position) error {
	data, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("redis: marshal position %s/%s: %w", pos.Wallet.Hex(), pos.AssetKey, err)
	}
	key := positionKey(pos.Wallet, pos.AssetKey)
	if err := pc.rdb.Set(ctx, key, data, positionTTL).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

// Get retrieves a cached projection, returning domain.ErrNotFound when the
// key is absent or expired.
func (pc *PositionCache) Get(ctx context.Context, wallet common.Address, assetKey string) (domain.Position, error) {
	key := positionKey(wallet, assetKey)
	data, err := pc.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("redis: get %s: %w", key, err)
	}

	var pos domain.Position
	if err := json.Unmarshal(data, &pos); err != nil {
		return domain.Position{}, fmt.Errorf("redis: unmarshal %s: %w", key, err)
	}
	return pos, nil
}

// Invalidate drops the cached projection so the next read goes to the chain.
func (pc *PositionCache) Invalidate(ctx context.Context, wallet common.Address, assetKey string) error {
	key := positionKey(wallet, assetKey)
	if err := pc.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis: del %s: %w", key, err)
	}
	return nil
}
