package repository

import (
	"context"
	"time"

	"github.com/DauBapp/WebCoCaro-DACN/internal/domain"
)

// StateRepository 短期状态，通常由 Redis 实现。
type StateRepository interface {
	// CheckRateLimit 递增 key 的计数并检查是否超过 limit。返回 true 表示超限。
	// 计数和窗口过期必须原子地设置。
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	// GetRoomHistoryCache 读取房间历史缓存，未命中返回 ErrCacheMiss。
	GetRoomHistoryCache(ctx context.Context, roomID string) (*domain.RoomHistory, error)

	// RoomHistoryVersion 房间历史缓存的当前版本，每次失效递增。读库前取得，写缓存时回传。
	RoomHistoryVersion(ctx context.Context, roomID string) (int64, error)

	// SetRoomHistoryCache 仅当版本仍为 version 时写入缓存，返回是否写入。ttl 为 0 表示不过期。
	SetRoomHistoryCache(ctx context.Context, roomID string, history *domain.RoomHistory, version int64, ttl time.Duration) (bool, error)

	// DeleteRoomHistoryCache 使房间历史缓存失效并递增其版本。
	DeleteRoomHistoryCache(ctx context.Context, roomIDs ...string) error
}
