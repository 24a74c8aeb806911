package mocks

import (
	"context"

	"github.com/DauBapp/WebCoCaro-DACN/internal/domain"
	"github.com/stretchr/testify/mock"
)

// HistoryRepository 是 repository.HistoryRepository 的 mock
type HistoryRepository struct {
	mock.Mock
}

func (m *HistoryRepository) FindOpenGame(ctx context.Context, roomID string) (*domain.GameRecord, error) {
	args := m.Called(ctx, roomID)
	game, _ := args.Get(0).(*domain.GameRecord)
	return game, args.Error(1)
}

func (m *HistoryRepository) FindGame(ctx context.Context, id uint) (*domain.GameRecord, error) {
	args := m.Called(ctx, id)
	game, _ := args.Get(0).(*domain.GameRecord)
	return game, args.Error(1)
}

func (m *HistoryRepository) CreateGame(ctx context.Context, game *domain.GameRecord) error {
	return m.Called(ctx, game).Error(0)
}

func (m *HistoryRepository) UpdateGame(ctx context.Context, game *domain.GameRecord) error {
	return m.Called(ctx, game).Error(0)
}

func (m *HistoryRepository) AppendMove(ctx context.Context, move *domain.MoveRecord) error {
	return m.Called(ctx, move).Error(0)
}

func (m *HistoryRepository) ListGamesByRoom(ctx context.Context, roomID string) ([]domain.GameRecord, error) {
	args := m.Called(ctx, roomID)
	games, _ := args.Get(0).([]domain.GameRecord)
	return games, args.Error(1)
}

func (m *HistoryRepository) ListMovesByGames(ctx context.Context, gameIDs []uint) ([]domain.MoveRecord, error) {
	args := m.Called(ctx, gameIDs)
	moves, _ := args.Get(0).([]domain.MoveRecord)
	return moves, args.Error(1)
}

func (m *HistoryRepository) CountMovesByGames(ctx context.Context, gameIDs []uint) (map[uint]int64, error) {
	args := m.Called(ctx, gameIDs)
	counts, _ := args.Get(0).(map[uint]int64)
	return counts, args.Error(1)
}

func (m *HistoryRepository) ListRecentGames(ctx context.Context, limit, offset int) ([]domain.GameRecord, error) {
	args := m.Called(ctx, limit, offset)
	games, _ := args.Get(0).([]domain.GameRecord)
	return games, args.Error(1)
}

func (m *HistoryRepository) CountGames(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *HistoryRepository) DeleteGames(ctx context.Context, ids []uint) error {
	return m.Called(ctx, ids).Error(0)
}

func (m *HistoryRepository) DeleteMovesForGames(ctx context.Context, gameIDs []uint) error {
	return m.Called(ctx, gameIDs).Error(0)
}
