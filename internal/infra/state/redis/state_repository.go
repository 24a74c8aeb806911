package redisstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/DauBapp/WebCoCaro-DACN/internal/domain"
	"github.com/DauBapp/WebCoCaro-DACN/internal/repository"
)

// 以下 Lua 脚本在 Redis 中原子执行

// rateLimitLua 计数加一，首次计数或 key 没有过期时间时设置窗口
// KEYS[1] 计数 key，ARGV[1] 窗口毫秒数
const rateLimitLua = `
local count = redis.call('INCR', KEYS[1])
if count == 1 or redis.call('PTTL', KEYS[1]) < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return count
`

var rateLimitScript = redis.NewScript(rateLimitLua)

// setHistoryScript 版本未变时写入历史缓存
// KEYS[1] 版本 key，KEYS[2] 缓存 key；ARGV[1] 读库前的版本，ARGV[2] 缓存内容，ARGV[3] 过期毫秒数（0 不过期）
var setHistoryScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1]) or '0'
if current ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[2], ARGV[2])
end
return 1
`)

// invalidateHistoryScript 递增版本并删除缓存，KEYS 成对出现：版本 key、缓存 key
// ARGV[1] 版本 key 的过期毫秒数
var invalidateHistoryScript = redis.NewScript(`
for i = 1, #KEYS, 2 do
	redis.call('INCR', KEYS[i])
	redis.call('PEXPIRE', KEYS[i], ARGV[1])
	redis.call('DEL', KEYS[i + 1])
end
return #KEYS / 2
`)

// 版本 key 保留时长，远大于缓存 TTL
const historyVersionTTL = 24 * time.Hour

// RedisStateRepository 是 StateRepository 接口的 Redis 实现
type RedisStateRepository struct {
	client    *redis.Client
	keyPrefix string
}

var _ repository.StateRepository = (*RedisStateRepository)(nil)

// NewRedisStateRepository 创建 RedisStateRepository 实例
func NewRedisStateRepository(client *redis.Client, keyPrefix string) *RedisStateRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisStateRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "caro:"
	}
	return &RedisStateRepository{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (r *RedisStateRepository) roomHistoryKey(roomID string) string {
	return fmt.Sprintf("%sroom:%s:history", r.keyPrefix, roomID)
}

func (r *RedisStateRepository) roomHistoryVersionKey(roomID string) string {
	return fmt.Sprintf("%sroom:%s:history:ver", r.keyPrefix, roomID)
}

func (r *RedisStateRepository) rateLimitKey(key string) string {
	return r.keyPrefix + "ratelimit:" + key
}

// CheckRateLimit 固定窗口计数，超过 limit 返回 true。
// 窗口只在首次计数时设置，持续请求不会把窗口无限延长。
func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	fullKey := r.rateLimitKey(key)
	count, err := rateLimitScript.Run(ctx, r.client, []string{fullKey}, window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("redis: failed to count rate limit on key %s: %w", fullKey, err)
	}
	return count > int64(limit), nil
}

// GetRoomHistoryCache 读取房间历史缓存
func (r *RedisStateRepository) GetRoomHistoryCache(ctx context.Context, roomID string) (*domain.RoomHistory, error) {
	key := r.roomHistoryKey(roomID)
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis: failed to get history cache for room %s from %s: %w", roomID, key, err)
	}
	var history domain.RoomHistory
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, fmt.Errorf("redis: failed to unmarshal history cache for room %s: %w", roomID, err)
	}
	return &history, nil
}

// RoomHistoryVersion 读取缓存版本，不存在时为 0
func (r *RedisStateRepository) RoomHistoryVersion(ctx context.Context, roomID string) (int64, error) {
	key := r.roomHistoryVersionKey(roomID)
	v, err := r.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis: failed to get history version for room %s from %s: %w", roomID, key, err)
	}
	return v, nil
}

// SetRoomHistoryCache 版本未变时写入房间历史缓存
func (r *RedisStateRepository) SetRoomHistoryCache(ctx context.Context, roomID string, history *domain.RoomHistory, version int64, ttl time.Duration) (bool, error) {
	raw, err := json.Marshal(history)
	if err != nil {
		return false, fmt.Errorf("redis: failed to marshal history for room %s: %w", roomID, err)
	}
	keys := []string{r.roomHistoryVersionKey(roomID), r.roomHistoryKey(roomID)}
	stored, err := setHistoryScript.Run(ctx, r.client, keys, strconv.FormatInt(version, 10), raw, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("redis: failed to set history cache for room %s: %w", roomID, err)
	}
	return stored == 1, nil
}

// DeleteRoomHistoryCache 批量使房间历史缓存失效
func (r *RedisStateRepository) DeleteRoomHistoryCache(ctx context.Context, roomIDs ...string) error {
	if len(roomIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, 2*len(roomIDs))
	for _, id := range roomIDs {
		keys = append(keys, r.roomHistoryVersionKey(id), r.roomHistoryKey(id))
	}
	if err := invalidateHistoryScript.Run(ctx, r.client, keys, historyVersionTTL.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("redis: failed to invalidate history cache for %d rooms: %w", len(roomIDs), err)
	}
	return nil
}
