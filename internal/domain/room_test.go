package domain_test

import (
	"testing"
	"time"

	"github.com/DauBapp/WebCoCaro-DACN/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoom_AddPlayer(t *testing.T) {
	room := domain.NewRoom("R1", false, time.Now())
	assert.Equal(t, "Room R1", room.Name)

	a, added, err := room.AddPlayer("conn-a", "1", "Alice")
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, domain.SymbolX, a.Symbol)
	assert.True(t, a.IsHost)

	b, added, err := room.AddPlayer("conn-b", "2", "Bob")
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, domain.SymbolO, b.Symbol)
	assert.False(t, b.IsHost)

	again, added, err := room.AddPlayer("conn-a", "1", "Alice")
	require.NoError(t, err)
	assert.False(t, added, "重复加入不改变成员")
	assert.Equal(t, a, again)

	_, _, err = room.AddPlayer("conn-c", "3", "Carol")
	assert.ErrorIs(t, err, domain.ErrRoomFull)
	assert.Equal(t, 2, room.Count())
}

func TestRoom_RemovePlayer_HostFailover(t *testing.T) {
	room := domain.NewRoom("R1", false, time.Now())
	_, _, _ = room.AddPlayer("conn-a", "", "Alice")
	_, _, _ = room.AddPlayer("conn-b", "", "Bob")

	res, ok := room.RemovePlayer("conn-a")
	require.True(t, ok)
	assert.Equal(t, "Alice", res.Player.Name)
	require.NotNil(t, res.NewHost)
	assert.Equal(t, "conn-b", res.NewHost.ConnectionID)
	assert.False(t, res.Emptied)
	require.Len(t, res.Remaining, 1)
	assert.True(t, res.Remaining[0].IsHost)

	// 新来的人补上空出的 X
	c, _, err := room.AddPlayer("conn-c", "", "Carol")
	require.NoError(t, err)
	assert.Equal(t, domain.SymbolX, c.Symbol)
	assert.False(t, c.IsHost)

	_, ok = room.RemovePlayer("conn-missing")
	assert.False(t, ok)
}

func TestRoom_RemoveLastPlayerClosesRoom(t *testing.T) {
	room := domain.NewRoom("R1", false, time.Now())
	_, _, _ = room.AddPlayer("conn-a", "", "Alice")

	res, ok := room.RemovePlayer("conn-a")
	require.True(t, ok)
	assert.True(t, res.Emptied)
	assert.Nil(t, res.NewHost)
	assert.True(t, room.Closed())

	_, _, err := room.AddPlayer("conn-b", "", "Bob")
	assert.ErrorIs(t, err, domain.ErrRoomClosed)
}

func TestRoom_HostOnlyOperations(t *testing.T) {
	room := domain.NewRoom("R1", false, time.Now())
	_, _, _ = room.AddPlayer("conn-a", "", "Alice")
	_, _, _ = room.AddPlayer("conn-b", "", "Bob")

	_, err := room.StartGame("conn-b")
	assert.ErrorIs(t, err, domain.ErrNotHost)
	_, err = room.StartGame("conn-x")
	assert.ErrorIs(t, err, domain.ErrNotInRoom)

	state, err := room.StartGame("conn-a")
	require.NoError(t, err)
	assert.True(t, state.Started)

	_, err = room.ResetGame("conn-b")
	assert.ErrorIs(t, err, domain.ErrNotHost)

	state, err = room.ResetGame("conn-a")
	require.NoError(t, err)
	assert.False(t, state.Started)
}

func TestRoom_PlayMoveUsesCallerSymbol(t *testing.T) {
	room := domain.NewRoom("R1", false, time.Now())
	_, _, _ = room.AddPlayer("conn-a", "", "Alice")
	_, _, _ = room.AddPlayer("conn-b", "", "Bob")
	_, err := room.StartGame("conn-a")
	require.NoError(t, err)

	_, err = room.PlayMove("conn-b", 0, 0)
	assert.ErrorIs(t, err, domain.ErrNotYourTurn)

	res, err := room.PlayMove("conn-a", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.SymbolX, res.Player.Symbol)
	assert.False(t, res.Ended())
	assert.Equal(t, domain.SymbolO, res.State.CurrentTurn)
	assert.Len(t, res.Members, 2)

	snap := room.Snapshot()
	assert.Equal(t, domain.CellX, snap.State.Board[0][0])
	assert.Equal(t, "Alice", snap.HostName)
	assert.Equal(t, []string{"conn-a", "conn-b"}, snap.ConnectionIDs())
}
