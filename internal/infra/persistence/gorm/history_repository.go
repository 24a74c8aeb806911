package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/DauBapp/WebCoCaro-DACN/internal/domain"
	"github.com/DauBapp/WebCoCaro-DACN/internal/repository"
)

// GormHistoryRepository 是 HistoryRepository 接口的 GORM 实现
type GormHistoryRepository struct {
	db *gorm.DB
}

var _ repository.HistoryRepository = (*GormHistoryRepository)(nil)

// NewGormHistoryRepository 创建 GormHistoryRepository 实例
func NewGormHistoryRepository(db *gorm.DB) *GormHistoryRepository {
	if db == nil {
		panic("database connection cannot be nil for GormHistoryRepository")
	}
	return &GormHistoryRepository{db: db}
}

// FindOpenGame 房间中未结束的最新一局
func (r *GormHistoryRepository) FindOpenGame(ctx context.Context, roomID string) (*domain.GameRecord, error) {
	var game domain.GameRecord
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND ended_at IS NULL", roomID).
		Order("started_at DESC, id DESC").
		First(&game).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrGameNotFound
		}
		return nil, fmt.Errorf("gorm: find open game for room '%s': %w", roomID, err)
	}
	return &game, nil
}

func (r *GormHistoryRepository) FindGame(ctx context.Context, id uint) (*domain.GameRecord, error) {
	var game domain.GameRecord
	if err := r.db.WithContext(ctx).First(&game, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrGameNotFound
		}
		return nil, fmt.Errorf("gorm: find game %d: %w", id, err)
	}
	return &game, nil
}

func (r *GormHistoryRepository) CreateGame(ctx context.Context, game *domain.GameRecord) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(game).Error; err != nil {
		return fmt.Errorf("gorm: create game for room '%s': %w", game.RoomID, err)
	}
	return nil
}

// UpdateGame 只更新结束时间和胜者
func (r *GormHistoryRepository) UpdateGame(ctx context.Context, game *domain.GameRecord) error {
	err := r.db.WithContext(ctx).
		Model(&domain.GameRecord{}).
		Where("id = ?", game.ID).
		Updates(map[string]interface{}{
			"ended_at": game.EndedAt,
			"winner":   game.Winner,
		}).Error
	if err != nil {
		return fmt.Errorf("gorm: update game %d: %w", game.ID, err)
	}
	return nil
}

func (r *GormHistoryRepository) AppendMove(ctx context.Context, move *domain.MoveRecord) error {
	if err := r.db.WithContext(ctx).Create(move).Error; err != nil {
		return fmt.Errorf("gorm: append move (game %d, %d,%d): %w", move.GameRecordID, move.Row, move.Col, err)
	}
	return nil
}

func (r *GormHistoryRepository) ListGamesByRoom(ctx context.Context, roomID string) ([]domain.GameRecord, error) {
	games := make([]domain.GameRecord, 0)
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("started_at DESC, id DESC").
		Find(&games).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list games for room '%s': %w", roomID, err)
	}
	return games, nil
}

func (r *GormHistoryRepository) ListMovesByGames(ctx context.Context, gameIDs []uint) ([]domain.MoveRecord, error) {
	moves := make([]domain.MoveRecord, 0)
	if len(gameIDs) == 0 {
		return moves, nil
	}
	err := r.db.WithContext(ctx).
		Where("game_record_id IN ?", gameIDs).
		Order("moved_at ASC, id ASC").
		Find(&moves).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list moves for %d games: %w", len(gameIDs), err)
	}
	return moves, nil
}

func (r *GormHistoryRepository) CountMovesByGames(ctx context.Context, gameIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(gameIDs))
	if len(gameIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		GameRecordID uint
		Total        int64
	}
	err := r.db.WithContext(ctx).
		Model(&domain.MoveRecord{}).
		Select("game_record_id, COUNT(*) AS total").
		Where("game_record_id IN ?", gameIDs).
		Group("game_record_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: count moves for %d games: %w", len(gameIDs), err)
	}
	for _, row := range rows {
		counts[row.GameRecordID] = row.Total
	}
	return counts, nil
}

func (r *GormHistoryRepository) ListRecentGames(ctx context.Context, limit, offset int) ([]domain.GameRecord, error) {
	if limit <= 0 {
		// MySQL 不支持只有 OFFSET 没有 LIMIT
		limit = math.MaxInt32
	}
	if offset < 0 {
		offset = 0
	}
	games := make([]domain.GameRecord, 0)
	err := r.db.WithContext(ctx).
		Order("started_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&games).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list recent games (limit %d, offset %d): %w", limit, offset, err)
	}
	return games, nil
}

func (r *GormHistoryRepository) CountGames(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&domain.GameRecord{}).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("gorm: count games: %w", err)
	}
	return total, nil
}

func (r *GormHistoryRepository) DeleteGames(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&domain.GameRecord{}).Error; err != nil {
		return fmt.Errorf("gorm: delete %d games: %w", len(ids), err)
	}
	return nil
}

func (r *GormHistoryRepository) DeleteMovesForGames(ctx context.Context, gameIDs []uint) error {
	if len(gameIDs) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Where("game_record_id IN ?", gameIDs).Delete(&domain.MoveRecord{}).Error; err != nil {
		return fmt.Errorf("gorm: delete moves for %d games: %w", len(gameIDs), err)
	}
	return nil
}
