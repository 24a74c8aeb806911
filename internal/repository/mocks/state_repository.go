package mocks

import (
	"context"
	"time"

	"github.com/DauBapp/WebCoCaro-DACN/internal/domain"
	"github.com/stretchr/testify/mock"
)

// StateRepository 是 repository.StateRepository 的 mock
type StateRepository struct {
	mock.Mock
}

func (m *StateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func (m *StateRepository) GetRoomHistoryCache(ctx context.Context, roomID string) (*domain.RoomHistory, error) {
	args := m.Called(ctx, roomID)
	hist, _ := args.Get(0).(*domain.RoomHistory)
	return hist, args.Error(1)
}

func (m *StateRepository) RoomHistoryVersion(ctx context.Context, roomID string) (int64, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *StateRepository) SetRoomHistoryCache(ctx context.Context, roomID string, history *domain.RoomHistory, version int64, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, roomID, history, version, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *StateRepository) DeleteRoomHistoryCache(ctx context.Context, roomIDs ...string) error {
	return m.Called(ctx, roomIDs).Error(0)
}
