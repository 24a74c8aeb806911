package repository

import (
	"context"

	"github.com/DauBapp/WebCoCaro-DACN/internal/domain"
)

// HistoryRepository 对局记录与落子记录的存储。
// 热路径只需要 FindOpenGame/CreateGame/AppendMove/UpdateGame，其余用于查询和保留策略。
type HistoryRepository interface {
	// FindOpenGame 返回房间中尚未结束（EndedAt 为空）的最新一局；没有时返回 ErrGameNotFound。
	FindOpenGame(ctx context.Context, roomID string) (*domain.GameRecord, error)

	// FindGame 按 ID 查找一局；没有时返回 ErrGameNotFound。
	FindGame(ctx context.Context, id uint) (*domain.GameRecord, error)

	// CreateGame 新建一局，成功后回填 game.ID。
	CreateGame(ctx context.Context, game *domain.GameRecord) error

	// UpdateGame 更新结束时间和胜者。
	UpdateGame(ctx context.Context, game *domain.GameRecord) error

	// AppendMove 追加一步落子，成功后回填 move.ID。
	AppendMove(ctx context.Context, move *domain.MoveRecord) error

	// ListGamesByRoom 某房间的所有对局，开始时间倒序。
	ListGamesByRoom(ctx context.Context, roomID string) ([]domain.GameRecord, error)

	// ListMovesByGames 指定对局的落子，按时间升序。
	ListMovesByGames(ctx context.Context, gameIDs []uint) ([]domain.MoveRecord, error)

	// CountMovesByGames 每局的落子数。
	CountMovesByGames(ctx context.Context, gameIDs []uint) (map[uint]int64, error)

	// ListRecentGames 全局按开始时间倒序跳过 offset 条后取 limit 条；limit <= 0 表示不限。
	ListRecentGames(ctx context.Context, limit, offset int) ([]domain.GameRecord, error)

	// CountGames 对局总数。
	CountGames(ctx context.Context) (int64, error)

	// DeleteGames 删除对局。
	DeleteGames(ctx context.Context, ids []uint) error

	// DeleteMovesForGames 删除指定对局的所有落子。
	DeleteMovesForGames(ctx context.Context, gameIDs []uint) error
}
