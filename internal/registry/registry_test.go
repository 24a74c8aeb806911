package registry_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/DauBapp/WebCoCaro-DACN/internal/domain"
	"github.com/DauBapp/WebCoCaro-DACN/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_GetOrCreateIsIdempotent(t *testing.T) {
	reg := registry.New()

	const workers = 50
	rooms := make([]*domain.Room, workers)
	created := make([]bool, workers)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			rooms[i], created[i] = reg.GetOrCreate("R1", false)
		}(i)
	}
	close(start)
	wg.Wait()

	createdCount := 0
	for i := 0; i < workers; i++ {
		assert.Same(t, rooms[0], rooms[i], "所有调用者必须拿到同一个 Room")
		if created[i] {
			createdCount++
		}
	}
	assert.Equal(t, 1, createdCount)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_ConcurrentFirstJoiners(t *testing.T) {
	for round := 0; round < 100; round++ {
		reg := registry.New()
		roomID := fmt.Sprintf("R-%d", round)

		var wg sync.WaitGroup
		start := make(chan struct{})
		players := make([]domain.Player, 2)
		errs := make([]error, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				_, players[i], _, errs[i] = reg.Join(roomID, false, fmt.Sprintf("conn-%d", i), "", fmt.Sprintf("p%d", i))
			}(i)
		}
		close(start)
		wg.Wait()

		require.NoError(t, errs[0])
		require.NoError(t, errs[1])

		hosts, xs := 0, 0
		for _, p := range players {
			if p.IsHost {
				hosts++
			}
			if p.Symbol == domain.SymbolX {
				xs++
			}
		}
		assert.Equal(t, 1, hosts, "round %d: 恰好一个房主", round)
		assert.Equal(t, 1, xs, "round %d: 恰好一个 X", round)
		for _, p := range players {
			assert.Equal(t, p.IsHost, p.Symbol == domain.SymbolX, "房主就是 X")
		}
	}
}

func TestRegistry_ThirdJoinerIsRejected(t *testing.T) {
	reg := registry.New()
	_, _, _, err := reg.Join("R1", false, "a", "", "A")
	require.NoError(t, err)
	_, _, _, err = reg.Join("R1", false, "b", "", "B")
	require.NoError(t, err)

	_, _, _, err = reg.Join("R1", false, "c", "", "C")
	assert.ErrorIs(t, err, domain.ErrRoomFull)

	room, ok := reg.Get("R1")
	require.True(t, ok)
	assert.Equal(t, 2, room.Count())
	_, bound := reg.RoomOf("c")
	assert.False(t, bound)
}

func TestRegistry_LeaveRemovesEmptyRoom(t *testing.T) {
	reg := registry.New()
	_, _, _, err := reg.Join("R1", false, "a", "", "A")
	require.NoError(t, err)

	roomID, ok := reg.RoomOf("a")
	require.True(t, ok)
	assert.Equal(t, "R1", roomID)

	_, res, err := reg.Leave("R1", "a")
	require.NoError(t, err)
	assert.True(t, res.Emptied)
	assert.False(t, reg.Exists("R1"))
	_, ok = reg.RoomOf("a")
	assert.False(t, ok)

	_, _, err = reg.Leave("R1", "a")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestRegistry_JoinAfterRoomClosedCreatesFreshRoom(t *testing.T) {
	reg := registry.New()
	old, _, _, err := reg.Join("R1", false, "a", "", "A")
	require.NoError(t, err)

	// 模拟离开与删除之间的窗口：房间已关闭但仍在注册表里
	_, ok := old.RemovePlayer("a")
	require.True(t, ok)
	require.True(t, reg.Exists("R1"))

	fresh, p, added, err := reg.Join("R1", false, "b", "", "B")
	require.NoError(t, err)
	assert.True(t, added)
	assert.NotSame(t, old, fresh)
	assert.True(t, p.IsHost)
	assert.Equal(t, domain.SymbolX, p.Symbol)

	cur, ok := reg.Get("R1")
	require.True(t, ok)
	assert.Same(t, fresh, cur)
}

func TestRegistry_RemoveIsCompareAndDelete(t *testing.T) {
	reg := registry.New()
	room, _ := reg.GetOrCreate("R1", false)
	other := domain.NewRoom("R1", false, room.CreatedAt)

	assert.False(t, reg.Remove("R1", other))
	assert.True(t, reg.Exists("R1"))
	assert.True(t, reg.Remove("R1", room))
	assert.False(t, reg.Exists("R1"))
}

func TestRegistry_NotMemberLeave(t *testing.T) {
	reg := registry.New()
	_, _, _, err := reg.Join("R1", false, "a", "", "A")
	require.NoError(t, err)

	_, _, err = reg.Leave("R1", "zzz")
	assert.ErrorIs(t, err, domain.ErrNotInRoom)
}
