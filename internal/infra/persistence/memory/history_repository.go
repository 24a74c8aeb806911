// Package memory 是仓库接口的进程内实现，用于 DB_DRIVER=memory 的本地运行和测试。
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/DauBapp/WebCoCaro-DACN/internal/domain"
	"github.com/DauBapp/WebCoCaro-DACN/internal/repository"
)

// HistoryRepository 内存中的对局记录
type HistoryRepository struct {
	mu     sync.RWMutex
	games  map[uint]domain.GameRecord
	moves  map[uint]domain.MoveRecord
	nextID uint
	nextMv uint
}

var _ repository.HistoryRepository = (*HistoryRepository)(nil)

// NewHistoryRepository 创建空仓库
func NewHistoryRepository() *HistoryRepository {
	return &HistoryRepository{
		games: make(map[uint]domain.GameRecord),
		moves: make(map[uint]domain.MoveRecord),
	}
}

func (r *HistoryRepository) FindOpenGame(_ context.Context, roomID string) (*domain.GameRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var open []domain.GameRecord
	for _, g := range r.games {
		if g.RoomID == roomID && g.EndedAt == nil {
			open = append(open, g)
		}
	}
	if len(open) == 0 {
		return nil, repository.ErrGameNotFound
	}
	sortGamesDesc(open)
	g := open[0]
	return &g, nil
}

func (r *HistoryRepository) FindGame(_ context.Context, id uint) (*domain.GameRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.games[id]
	if !ok {
		return nil, repository.ErrGameNotFound
	}
	return &g, nil
}

func (r *HistoryRepository) CreateGame(_ context.Context, game *domain.GameRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	game.ID = r.nextID
	stored := *game
	stored.Moves = nil
	r.games[game.ID] = stored
	return nil
}

func (r *HistoryRepository) UpdateGame(_ context.Context, game *domain.GameRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.games[game.ID]
	if !ok {
		return repository.ErrGameNotFound
	}
	if game.EndedAt != nil {
		at := *game.EndedAt
		cur.EndedAt = &at
	} else {
		cur.EndedAt = nil
	}
	cur.Winner = game.Winner
	r.games[game.ID] = cur
	return nil
}

func (r *HistoryRepository) AppendMove(_ context.Context, move *domain.MoveRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.games[move.GameRecordID]; !ok {
		return repository.ErrGameNotFound
	}
	r.nextMv++
	move.ID = r.nextMv
	r.moves[move.ID] = *move
	return nil
}

func (r *HistoryRepository) ListGamesByRoom(_ context.Context, roomID string) ([]domain.GameRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	games := make([]domain.GameRecord, 0)
	for _, g := range r.games {
		if g.RoomID == roomID {
			games = append(games, g)
		}
	}
	sortGamesDesc(games)
	return games, nil
}

func (r *HistoryRepository) ListMovesByGames(_ context.Context, gameIDs []uint) ([]domain.MoveRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	want := idSet(gameIDs)
	moves := make([]domain.MoveRecord, 0)
	for _, m := range r.moves {
		if want[m.GameRecordID] {
			moves = append(moves, m)
		}
	}
	sort.Slice(moves, func(i, j int) bool {
		if moves[i].MovedAt.Equal(moves[j].MovedAt) {
			return moves[i].ID < moves[j].ID
		}
		return moves[i].MovedAt.Before(moves[j].MovedAt)
	})
	return moves, nil
}

func (r *HistoryRepository) CountMovesByGames(_ context.Context, gameIDs []uint) (map[uint]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	want := idSet(gameIDs)
	counts := make(map[uint]int64, len(gameIDs))
	for _, m := range r.moves {
		if want[m.GameRecordID] {
			counts[m.GameRecordID]++
		}
	}
	return counts, nil
}

func (r *HistoryRepository) ListRecentGames(_ context.Context, limit, offset int) ([]domain.GameRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	games := make([]domain.GameRecord, 0, len(r.games))
	for _, g := range r.games {
		games = append(games, g)
	}
	sortGamesDesc(games)

	if offset < 0 {
		offset = 0
	}
	if offset >= len(games) {
		return []domain.GameRecord{}, nil
	}
	games = games[offset:]
	if limit > 0 && limit < len(games) {
		games = games[:limit]
	}
	return games, nil
}

func (r *HistoryRepository) CountGames(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.games)), nil
}

func (r *HistoryRepository) DeleteGames(_ context.Context, ids []uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.games, id)
	}
	// 与数据库外键的级联删除保持一致
	want := idSet(ids)
	for id, m := range r.moves {
		if want[m.GameRecordID] {
			delete(r.moves, id)
		}
	}
	return nil
}

func (r *HistoryRepository) DeleteMovesForGames(_ context.Context, gameIDs []uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := idSet(gameIDs)
	for id, m := range r.moves {
		if want[m.GameRecordID] {
			delete(r.moves, id)
		}
	}
	return nil
}

func sortGamesDesc(games []domain.GameRecord) {
	sort.Slice(games, func(i, j int) bool {
		if games[i].StartedAt.Equal(games[j].StartedAt) {
			return games[i].ID > games[j].ID
		}
		return games[i].StartedAt.After(games[j].StartedAt)
	})
}

func idSet(ids []uint) map[uint]bool {
	set := make(map[uint]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
