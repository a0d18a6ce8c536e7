package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"partygame/internal/models"
)

const leaderboardKeyPrefix = "leaderboard:"

// LeaderboardCache 將每場排行榜鏡像到 Redis ZSet，場次被清出記憶體後仍可查詢
type LeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLeaderboardCache(client *redis.Client, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{client: client, ttl: ttl}
}

func scoreKey(code string) string { return leaderboardKeyPrefix + code + ":score" }
func nameKey(code string) string { return leaderboardKeyPrefix + code + ":names" }

// Record 以單一 pipeline 覆寫分數與名稱並刷新 TTL
func (c *LeaderboardCache) Record(ctx context.Context, code string, entries []models.LeaderboardEntry) error {
	if len(entries) == 0 {
		return nil
	}

	members := make([]redis.Z, 0, len(entries))
	names := make([]interface{}, 0, len(entries)*2)
	for _, e := range entries {
		members = append(members, redis.Z{Score: float64(e.Score), Member: e.ID})
		names = append(names, e.ID, e.Name)
	}

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, scoreKey(code), members...)
		pipe.HSet(ctx, nameKey(code), names...)
		if c.ttl > 0 {
			pipe.Expire(ctx, scoreKey(code), c.ttl)
			pipe.Expire(ctx, nameKey(code), c.ttl)
		}
		return nil
	})
	return err
}

// Top 回傳前 limit 名，依分數遞減
func (c *LeaderboardCache) Top(ctx context.Context, code string, limit int64) ([]models.LeaderboardEntry, error) {
	results, err := c.client.ZRevRangeWithScores(ctx, scoreKey(code), 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNotFound
	}

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Member.(string)
	}
	names, err := c.client.HMGet(ctx, nameKey(code), ids...).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}

	entries := make([]models.LeaderboardEntry, len(results))
	for i, r := range results {
		entries[i] = models.LeaderboardEntry{ID: ids[i], Score: int(r.Score)}
		if i < len(names) {
			if name, ok := names[i].(string); ok {
				entries[i].Name = name
			}
		}
	}
	return entries, nil
}
