package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DauBapp/WebCoCaro-DACN/internal/domain"
	"github.com/DauBapp/WebCoCaro-DACN/internal/dto"
	"github.com/DauBapp/WebCoCaro-DACN/internal/repository"
)

const (
	DefaultHistoryKeep     = 25
	DefaultHistoryPageSize = 10
	defaultHistoryCacheTTL = 10 * time.Minute
)

// HistoryService 负责对局记录的查询、缓存和保留策略
type HistoryService struct {
	history  repository.HistoryRepository
	state    repository.StateRepository // 为 nil 时不使用缓存
	keep     int
	pageSize int
	cacheTTL time.Duration
}

// NewHistoryService 创建 HistoryService。keep、pageSize 非正数时使用默认值。
func NewHistoryService(history repository.HistoryRepository, state repository.StateRepository, keep, pageSize int) *HistoryService {
	if history == nil {
		panic("HistoryRepository cannot be nil for HistoryService")
	}
	if keep <= 0 {
		keep = DefaultHistoryKeep
	}
	if pageSize <= 0 {
		pageSize = DefaultHistoryPageSize
	}
	return &HistoryService{
		history:  history,
		state:    state,
		keep:     keep,
		pageSize: pageSize,
		cacheTTL: defaultHistoryCacheTTL,
	}
}

// RoomHistory 返回房间的对局和落子，优先读缓存。
// 读库前记下缓存版本，期间有写入使缓存失效时不回填，避免把旧快照写回缓存。
func (s *HistoryService) RoomHistory(ctx context.Context, roomID string) (*domain.RoomHistory, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "operation": "RoomHistory"})

	var (
		version   int64
		cacheable bool
	)
	if s.state != nil {
		cached, err := s.state.GetRoomHistoryCache(ctx, roomID)
		if err == nil {
			logCtx.Debug("Room history served from cache")
			return cached, nil
		}
		if !errors.Is(err, repository.ErrCacheMiss) {
			logCtx.WithError(err).Warn("Failed to read room history cache, falling back to database")
		}
		if version, err = s.state.RoomHistoryVersion(ctx, roomID); err != nil {
			logCtx.WithError(err).Warn("Failed to read room history cache version, result will not be cached")
		} else {
			cacheable = true
		}
	}

	games, err := s.history.ListGamesByRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("list games for room %s: %w", roomID, err)
	}
	ids := make([]uint, 0, len(games))
	for _, g := range games {
		ids = append(ids, g.ID)
	}
	moves, err := s.history.ListMovesByGames(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list moves for room %s: %w", roomID, err)
	}

	hist := &domain.RoomHistory{Games: games, Moves: moves}
	if cacheable {
		stored, err := s.state.SetRoomHistoryCache(ctx, roomID, hist, version, s.cacheTTL)
		switch {
		case err != nil:
			logCtx.WithError(err).Warn("Failed to cache room history")
		case !stored:
			logCtx.Debug("Room history changed while loading, cache not filled")
		}
	}
	return hist, nil
}

// InvalidateRoom 使房间历史缓存失效，失败只记录日志
func (s *HistoryService) InvalidateRoom(ctx context.Context, roomIDs ...string) {
	if s.state == nil || len(roomIDs) == 0 {
		return
	}
	if err := s.state.DeleteRoomHistoryCache(ctx, roomIDs...); err != nil {
		logrus.WithError(err).WithField("room_ids", roomIDs).Warn("Failed to invalidate room history cache")
	}
}

// Prune 只保留最近 keep 局，删除其余已结束的对局及其落子，返回删除的局数。
// 未结束的对局不删除，清理在房间 gate 之外运行，删掉会让进行中的对局丢失记录。
func (s *HistoryService) Prune(ctx context.Context) (int, error) {
	beyond, err := s.history.ListRecentGames(ctx, 0, s.keep)
	if err != nil {
		return 0, fmt.Errorf("list games beyond retention: %w", err)
	}

	ids := make([]uint, 0, len(beyond))
	roomSet := make(map[string]struct{})
	for _, g := range beyond {
		if g.IsOpen() {
			continue
		}
		ids = append(ids, g.ID)
		roomSet[g.RoomID] = struct{}{}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := s.history.DeleteMovesForGames(ctx, ids); err != nil {
		return 0, fmt.Errorf("delete moves of %d stale games: %w", len(ids), err)
	}
	if err := s.history.DeleteGames(ctx, ids); err != nil {
		return 0, fmt.Errorf("delete %d stale games: %w", len(ids), err)
	}

	rooms := make([]string, 0, len(roomSet))
	for id := range roomSet {
		rooms = append(rooms, id)
	}
	s.InvalidateRoom(ctx, rooms...)

	logrus.WithFields(logrus.Fields{"deleted": len(ids), "keep": s.keep}).Info("Pruned game history")
	return len(ids), nil
}

// ListRecent 先执行保留策略，再返回第 page 页（从 1 开始，越界时夹到有效范围）
func (s *HistoryService) ListRecent(ctx context.Context, page int) (*dto.HistoryPage, error) {
	if _, err := s.Prune(ctx); err != nil {
		logrus.WithError(err).Warn("History prune failed before listing")
	}

	total, err := s.history.CountGames(ctx)
	if err != nil {
		return nil, fmt.Errorf("count games: %w", err)
	}
	totalPages := int((total + int64(s.pageSize) - 1) / int64(s.pageSize))
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	games, err := s.history.ListRecentGames(ctx, s.pageSize, (page-1)*s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("list recent games: %w", err)
	}
	ids := make([]uint, 0, len(games))
	for _, g := range games {
		ids = append(ids, g.ID)
	}
	counts, err := s.history.CountMovesByGames(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("count moves: %w", err)
	}

	summaries := make([]dto.GameSummary, 0, len(games))
	for _, g := range games {
		summaries = append(summaries, dto.GameSummary{
			HistoryEntry: historyEntry(g, nil),
			MoveCount:    counts[g.ID],
		})
	}
	return &dto.HistoryPage{
		Games:      summaries,
		Page:       page,
		TotalPages: totalPages,
		Total:      total,
	}, nil
}

// GameMoves 某一局的全部落子，按时间升序
func (s *HistoryService) GameMoves(ctx context.Context, gameID uint) ([]domain.MoveRecord, error) {
	if _, err := s.history.FindGame(ctx, gameID); err != nil {
		if errors.Is(err, repository.ErrGameNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("find game %d: %w", gameID, err)
	}
	moves, err := s.history.ListMovesByGames(ctx, []uint{gameID})
	if err != nil {
		return nil, fmt.Errorf("list moves of game %d: %w", gameID, err)
	}
	return moves, nil
}

// historyEntry 把记录转成展示用条目。
// 名称解析顺序：房间当前成员 → 建局时的名称快照 → 原始连接 ID。
func historyEntry(g domain.GameRecord, members []domain.Player) dto.HistoryEntry {
	return dto.HistoryEntry{
		ID:        g.ID,
		RoomID:    g.RoomID,
		PlayerX:   resolveName(g.PlayerXRef, g.PlayerXName, members),
		PlayerO:   resolveName(g.PlayerORef, g.PlayerOName, members),
		StartedAt: g.StartedAt,
		EndedAt:   g.EndedAt,
		Winner:    g.Winner,
	}
}

func resolveName(ref, snapshot string, members []domain.Player) string {
	if ref != "" {
		for _, m := range members {
			if m.ConnectionID == ref {
				return m.Name
			}
		}
	}
	if snapshot != "" {
		return snapshot
	}
	return ref
}
