package service_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DauBapp/WebCoCaro-DACN/internal/domain"
	"github.com/DauBapp/WebCoCaro-DACN/internal/dto"
	"github.com/DauBapp/WebCoCaro-DACN/internal/infra/persistence/memory"
	"github.com/DauBapp/WebCoCaro-DACN/internal/registry"
	"github.com/DauBapp/WebCoCaro-DACN/internal/repository"
	"github.com/DauBapp/WebCoCaro-DACN/internal/service"
)

// versionedCache 按 Redis 实现的语义在内存中模拟带版本的历史缓存
type versionedCache struct {
	mu       sync.Mutex
	versions map[string]int64
	entries  map[string]*domain.RoomHistory
}

func newVersionedCache() *versionedCache {
	return &versionedCache{versions: make(map[string]int64), entries: make(map[string]*domain.RoomHistory)}
}

func (c *versionedCache) CheckRateLimit(context.Context, string, int, time.Duration) (bool, error) {
	return false, nil
}

func (c *versionedCache) GetRoomHistoryCache(_ context.Context, roomID string) (*domain.RoomHistory, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.entries[roomID]; ok {
		return h, nil
	}
	return nil, repository.ErrCacheMiss
}

func (c *versionedCache) RoomHistoryVersion(_ context.Context, roomID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[roomID], nil
}

func (c *versionedCache) SetRoomHistoryCache(_ context.Context, roomID string, h *domain.RoomHistory, version int64, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[roomID] != version {
		return false, nil
	}
	c.entries[roomID] = h
	return true, nil
}

func (c *versionedCache) DeleteRoomHistoryCache(_ context.Context, roomIDs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range roomIDs {
		c.versions[id]++
		delete(c.entries, id)
	}
	return nil
}

// pausingHistory 在下一次 ListMovesByGames 时暂停，直到 release 关闭
type pausingHistory struct {
	*memory.HistoryRepository
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (p *pausingHistory) ListMovesByGames(ctx context.Context, gameIDs []uint) ([]domain.MoveRecord, error) {
	if p.armed.CompareAndSwap(true, false) {
		moves, err := p.HistoryRepository.ListMovesByGames(ctx, gameIDs)
		close(p.entered)
		<-p.release
		return moves, err
	}
	return p.HistoryRepository.ListMovesByGames(ctx, gameIDs)
}

func lastHistory(t *testing.T, n *recordingNotifier, connID string) dto.ReceiveHistory {
	t.Helper()
	evs := n.events(connID, dto.EvtReceiveHistory)
	require.NotEmpty(t, evs)
	return evs[len(evs)-1].Data.(dto.ReceiveHistory)
}

func TestGameService_RequestHistory_NotStaleAfterConcurrentMove(t *testing.T) {
	ctx := context.Background()
	repo := &pausingHistory{
		HistoryRepository: memory.NewHistoryRepository(),
		entered:           make(chan struct{}),
		release:           make(chan struct{}),
	}
	notifier := newRecordingNotifier()
	records := service.NewHistoryService(repo, newVersionedCache(), 25, 10)
	svc := service.NewGameService(registry.New(), repo, records, notifier, &countingPruner{})

	require.NoError(t, svc.Join(ctx, alice, "R1", "Alice"))
	require.NoError(t, svc.Join(ctx, bob, "R1", "Bob"))
	require.NoError(t, svc.Start(ctx, alice, "R1"))
	require.NoError(t, svc.Move(ctx, alice, "R1", 0, 0))

	// 读者在读库途中，另一位玩家落子并使缓存失效
	repo.armed.Store(true)
	done := make(chan error, 1)
	go func() { done <- svc.RequestHistory(ctx, carol, "R1") }()

	select {
	case <-repo.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("history read did not reach the database")
	}
	require.NoError(t, svc.Move(ctx, bob, "R1", 1, 1))
	close(repo.release)
	require.NoError(t, <-done)
	assert.Len(t, lastHistory(t, notifier, carol.ConnectionID).Moves, 1, "并发读到的是落子前的快照")

	// 旧快照不能留在缓存里
	require.NoError(t, svc.RequestHistory(ctx, carol, "R1"))
	assert.Len(t, lastHistory(t, notifier, carol.ConnectionID).Moves, 2)

	// 缓存回填后仍随后续落子失效
	require.NoError(t, svc.Move(ctx, alice, "R1", 0, 1))
	require.NoError(t, svc.RequestHistory(ctx, carol, "R1"))
	assert.Len(t, lastHistory(t, notifier, carol.ConnectionID).Moves, 3)
}
