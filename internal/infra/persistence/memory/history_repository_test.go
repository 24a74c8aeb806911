package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/DauBapp/WebCoCaro-DACN/internal/domain"
	"github.com/DauBapp/WebCoCaro-DACN/internal/infra/persistence/memory"
	"github.com/DauBapp/WebCoCaro-DACN/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryRepository_OpenGameLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewHistoryRepository()

	_, err := repo.FindOpenGame(ctx, "R1")
	assert.ErrorIs(t, err, repository.ErrGameNotFound)

	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	game := &domain.GameRecord{RoomID: "R1", PlayerXRef: "a", PlayerORef: "b", StartedAt: start}
	require.NoError(t, repo.CreateGame(ctx, game))
	require.NotZero(t, game.ID)

	open, err := repo.FindOpenGame(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, game.ID, open.ID)

	require.NoError(t, repo.AppendMove(ctx, &domain.MoveRecord{GameRecordID: game.ID, Symbol: domain.SymbolX, Row: 1, Col: 1, MovedAt: start.Add(2 * time.Second)}))
	require.NoError(t, repo.AppendMove(ctx, &domain.MoveRecord{GameRecordID: game.ID, Symbol: domain.SymbolO, Row: 2, Col: 2, MovedAt: start.Add(time.Second)}))

	game.Close("X", start.Add(time.Minute))
	require.NoError(t, repo.UpdateGame(ctx, game))

	_, err = repo.FindOpenGame(ctx, "R1")
	assert.ErrorIs(t, err, repository.ErrGameNotFound)

	stored, err := repo.FindGame(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, "X", stored.Winner)
	require.NotNil(t, stored.EndedAt)

	moves, err := repo.ListMovesByGames(ctx, []uint{game.ID})
	require.NoError(t, err)
	require.Len(t, moves, 2)
	assert.Equal(t, domain.SymbolO, moves[0].Symbol, "按时间升序")

	assert.ErrorIs(t, repo.AppendMove(ctx, &domain.MoveRecord{GameRecordID: 999}), repository.ErrGameNotFound)
}

func TestHistoryRepository_RecentAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewHistoryRepository()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	ids := make([]uint, 0, 5)
	for i := 0; i < 5; i++ {
		g := &domain.GameRecord{RoomID: "R", StartedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, repo.CreateGame(ctx, g))
		require.NoError(t, repo.AppendMove(ctx, &domain.MoveRecord{GameRecordID: g.ID, MovedAt: g.StartedAt}))
		ids = append(ids, g.ID)
	}

	recent, err := repo.ListRecentGames(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, ids[4], recent[0].ID)
	assert.Equal(t, ids[3], recent[1].ID)

	beyond, err := repo.ListRecentGames(ctx, 0, 3)
	require.NoError(t, err)
	require.Len(t, beyond, 2)
	assert.ElementsMatch(t, []uint{ids[0], ids[1]}, []uint{beyond[0].ID, beyond[1].ID})

	empty, err := repo.ListRecentGames(ctx, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, repo.DeleteMovesForGames(ctx, ids[:2]))
	require.NoError(t, repo.DeleteGames(ctx, ids[:2]))

	total, err := repo.CountGames(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)

	counts, err := repo.CountMovesByGames(ctx, ids)
	require.NoError(t, err)
	assert.Zero(t, counts[ids[0]])
	assert.EqualValues(t, 1, counts[ids[4]])
}
