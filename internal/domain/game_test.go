package domain_test

import (
	"testing"

	"github.com/DauBapp/WebCoCaro-DACN/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGameState_Lifecycle(t *testing.T) {
	g := domain.NewGameState()
	assert.Equal(t, domain.StatusNotStarted, g.Status())

	_, err := g.Move(domain.SymbolX, 0, 0)
	assert.ErrorIs(t, err, domain.ErrGameNotStarted)

	require.NoError(t, g.Start())
	assert.Equal(t, domain.StatusInProgress, g.Status())
	assert.Equal(t, domain.SymbolX, g.CurrentTurn)
	assert.ErrorIs(t, g.Start(), domain.ErrGameAlreadyStarted)

	g.TimeBudget = 12
	outcome, err := g.Move(domain.SymbolX, 5, 5)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeContinue, outcome)
	assert.Equal(t, domain.SymbolO, g.CurrentTurn)
	assert.Equal(t, domain.TurnSeconds, g.TimeBudget, "落子后倒计时重置")

	g.Reset()
	assert.Equal(t, domain.NewGameState(), g)
	assert.Equal(t, domain.StatusNotStarted, g.Status())
}

func TestGameState_MoveRejections(t *testing.T) {
	g := domain.NewGameState()
	require.NoError(t, g.Start())
	_, err := g.Move(domain.SymbolX, 3, 3)
	require.NoError(t, err)
	before := g

	_, err = g.Move(domain.SymbolX, 4, 4)
	assert.ErrorIs(t, err, domain.ErrNotYourTurn)

	_, err = g.Move(domain.SymbolO, 3, 3)
	assert.ErrorIs(t, err, domain.ErrCellOccupied)

	_, err = g.Move(domain.SymbolO, 20, 3)
	assert.ErrorIs(t, err, domain.ErrOutOfBounds)

	assert.Equal(t, before, g, "被拒绝的落子不改变状态")
}

func TestGameState_WinEndsGame(t *testing.T) {
	g := domain.NewGameState()
	require.NoError(t, g.Start())

	for i := 0; i < 4; i++ {
		_, err := g.Move(domain.SymbolX, 0, i)
		require.NoError(t, err)
		_, err = g.Move(domain.SymbolO, 1, i)
		require.NoError(t, err)
	}
	outcome, err := g.Move(domain.SymbolX, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeWin, outcome)
	assert.Equal(t, "X", g.Winner)
	assert.Equal(t, domain.StatusWon, g.Status())

	_, err = g.Move(domain.SymbolO, 1, 4)
	assert.ErrorIs(t, err, domain.ErrGameAlreadyEnded)
	assert.ErrorIs(t, g.Start(), domain.ErrGameAlreadyStarted, "结束后需先重置")
}

func TestGameState_DrawOnLastCell(t *testing.T) {
	g := domain.NewGameState()
	require.NoError(t, g.Start())

	// 用不会连成五子的图案填满棋盘，只留最后一格
	for r := 0; r < domain.BoardSize; r++ {
		for c := 0; c < domain.BoardSize; c++ {
			if (c/2+r)%2 == 0 {
				g.Board[r][c] = domain.CellX
			} else {
				g.Board[r][c] = domain.CellO
			}
		}
	}
	last := domain.BoardSize - 1
	symbol := domain.SymbolX
	if g.Board[last][last] == domain.CellO {
		symbol = domain.SymbolO
	}
	g.Board[last][last] = domain.CellEmpty
	g.CurrentTurn = symbol

	outcome, err := g.Move(symbol, last, last)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDraw, outcome)
	assert.Equal(t, domain.WinnerDraw, g.Winner)
	assert.Equal(t, domain.StatusDrawn, g.Status())
}
