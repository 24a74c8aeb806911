package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DauBapp/WebCoCaro-DACN/internal/domain"
	"github.com/DauBapp/WebCoCaro-DACN/internal/dto"
	"github.com/DauBapp/WebCoCaro-DACN/internal/registry"
	"github.com/DauBapp/WebCoCaro-DACN/internal/repository"
)

// Caller 发起操作的连接及其认证身份
type Caller struct {
	ConnectionID string
	UserID       string
	UserName     string
}

// Authenticated 是否携带了有效的用户身份
func (c Caller) Authenticated() bool { return c.UserID != "" }

// Notifier 把事件投递给连接。由 hub 实现。
type Notifier interface {
	SendToConnection(connID string, event dto.Event)
	SendToConnections(connIDs []string, event dto.Event)
	// SendToUser 发给该用户的所有连接，用户不在线时返回 false
	SendToUser(userID string, event dto.Event) bool
	Broadcast(event dto.Event)
}

// PruneEnqueuer 投递历史清理任务
type PruneEnqueuer interface {
	EnqueuePrune(ctx context.Context) error
}

// GameService 房间与对局的协调者：成员变更、开局、落子、重置、邀请和历史查询。
// 所有房间状态都经 RoomRegistry 读取，不在调用之间缓存。
type GameService struct {
	rooms    *registry.RoomRegistry
	history  repository.HistoryRepository
	records  *HistoryService
	notifier Notifier
	pruner   PruneEnqueuer

	now      func() time.Time
	roomCode func(taken func(string) bool) (string, error)
}

// NewGameService 创建 GameService。pruner 可以为 nil，此时不投递清理任务。
func NewGameService(rooms *registry.RoomRegistry, history repository.HistoryRepository, records *HistoryService, notifier Notifier, pruner PruneEnqueuer) *GameService {
	if rooms == nil {
		panic("RoomRegistry cannot be nil for GameService")
	}
	if history == nil {
		panic("HistoryRepository cannot be nil for GameService")
	}
	if records == nil {
		panic("HistoryService cannot be nil for GameService")
	}
	if notifier == nil {
		panic("Notifier cannot be nil for GameService")
	}
	return &GameService{
		rooms:    rooms,
		history:  history,
		records:  records,
		notifier: notifier,
		pruner:   pruner,
		now:      time.Now,
		roomCode: GenerateRoomCode,
	}
}

// Join 加入（不存在则创建）房间。已在其他房间的连接先离开原房间。
func (s *GameService) Join(ctx context.Context, caller Caller, roomID, name string) error {
	return s.join(ctx, caller, roomID, name, false)
}

func (s *GameService) join(ctx context.Context, caller Caller, roomID, name string, private bool) error {
	if roomID == "" {
		return fmt.Errorf("%w: roomId is required", ErrInvalidInput)
	}
	if name == "" {
		name = caller.UserName
	}
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "conn_id": caller.ConnectionID, "operation": "Join"})

	if prev, ok := s.rooms.RoomOf(caller.ConnectionID); ok && prev != roomID {
		if err := s.Leave(ctx, caller, prev); err != nil && !errors.Is(err, domain.ErrRoomNotFound) && !errors.Is(err, domain.ErrNotInRoom) {
			logCtx.WithError(err).WithField("prev_room_id", prev).Warn("Failed to leave previous room before join")
		}
	}

	room, player, added, err := s.rooms.Join(roomID, private, caller.ConnectionID, caller.UserID, name)
	if err != nil {
		return err
	}
	snap := room.Snapshot()

	if added {
		ids := snap.ConnectionIDs()
		s.notifier.SendToConnections(ids, dto.NewEvent(dto.EvtPlayerJoined, dto.PlayerJoined{
			Name:   player.Name,
			Symbol: player.Symbol,
			Count:  len(snap.Members),
		}))
		s.notifier.SendToConnections(ids, dto.NewEvent(dto.EvtPlayerListUpdated, dto.PlayerListUpdated{Members: snap.Members}))
		logCtx.WithFields(logrus.Fields{"symbol": player.Symbol, "is_host": player.IsHost}).Info("Player joined room")
	}
	s.notifier.SendToConnection(caller.ConnectionID, dto.NewEvent(dto.EvtRoomJoined, dto.RoomJoined{
		RoomID:  snap.ID,
		Name:    snap.Name,
		Members: snap.Members,
		State:   snap.State,
	}))
	if added {
		s.broadcastRoomList()
	}
	return nil
}

// Leave 离开房间。房主离开时由下一位接任，房间变空时删除并中止未结束的对局记录。
func (s *GameService) Leave(ctx context.Context, caller Caller, roomID string) error {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "conn_id": caller.ConnectionID, "operation": "Leave"})

	room, res, err := s.rooms.Leave(roomID, caller.ConnectionID)
	if err != nil {
		return err
	}

	if len(res.Remaining) > 0 {
		ids := make([]string, 0, len(res.Remaining))
		for _, p := range res.Remaining {
			ids = append(ids, p.ConnectionID)
		}
		s.notifier.SendToConnections(ids, dto.NewEvent(dto.EvtPlayerLeft, dto.PlayerLeft{Name: res.Player.Name, Count: len(res.Remaining)}))
		s.notifier.SendToConnections(ids, dto.NewEvent(dto.EvtPlayerListUpdated, dto.PlayerListUpdated{Members: res.Remaining}))
	}
	if res.NewHost != nil {
		logCtx.WithField("new_host", res.NewHost.ConnectionID).Info("Host reassigned")
	}
	logCtx.WithField("remaining", len(res.Remaining)).Info("Player left room")

	if res.Emptied {
		// 进行中的落子可能还在持久化，关闭记录要等它完成
		_ = room.WithGate(func() error {
			if _, err := s.closeOpenRecord(ctx, roomID, domain.WinnerAborted); err != nil {
				logCtx.WithError(err).Error("Failed to abort open game record of emptied room")
			}
			return nil
		})
		logCtx.Info("Room emptied and removed")
	}
	s.broadcastRoomList()
	return nil
}

// Disconnect 连接断开时等同于离开其所在房间
func (s *GameService) Disconnect(ctx context.Context, caller Caller) {
	roomID, ok := s.rooms.RoomOf(caller.ConnectionID)
	if !ok {
		return
	}
	if err := s.Leave(ctx, caller, roomID); err != nil && !errors.Is(err, domain.ErrRoomNotFound) && !errors.Is(err, domain.ErrNotInRoom) {
		logrus.WithError(err).WithFields(logrus.Fields{"room_id": roomID, "conn_id": caller.ConnectionID}).Warn("Failed to leave room on disconnect")
	}
}

// Start 房主开局
func (s *GameService) Start(ctx context.Context, caller Caller, roomID string) error {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}
	return room.WithGate(func() error {
		state, err := room.StartGame(caller.ConnectionID)
		if err != nil {
			return err
		}
		s.notifier.SendToConnections(room.Snapshot().ConnectionIDs(), dto.NewEvent(dto.EvtGameStarted, dto.GameStateChanged{State: state}))
		logrus.WithFields(logrus.Fields{"room_id": roomID, "conn_id": caller.ConnectionID}).Info("Game started")
		return nil
	})
}

// Move 在房间的落子串行器内校验、应用、持久化并广播一步棋。
// 持久化失败时内存中的结果保留，事件照常广播，调用者另外收到 PersistenceFailure。
func (s *GameService) Move(ctx context.Context, caller Caller, roomID string, row, col int) error {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}

	var ended bool
	err := room.WithGate(func() error {
		res, err := room.PlayMove(caller.ConnectionID, row, col)
		if err != nil {
			return err
		}
		ended = res.Ended()

		persistErr := s.persistMove(ctx, roomID, res)

		ids := make([]string, 0, len(res.Members))
		for _, p := range res.Members {
			ids = append(ids, p.ConnectionID)
		}
		s.notifier.SendToConnections(ids, dto.NewEvent(dto.EvtMoveMade, dto.MoveMade{
			Row:    row,
			Col:    col,
			Symbol: res.Player.Symbol,
			State:  res.State,
		}))
		if ended {
			s.notifier.SendToConnections(ids, dto.NewEvent(dto.EvtGameEnded, dto.GameEnded{Winner: res.Winner(), State: res.State}))
			logrus.WithFields(logrus.Fields{"room_id": roomID, "winner": res.Winner()}).Info("Game ended")
		}

		if persistErr != nil {
			logrus.WithFields(logrus.Fields{
				"room_id": roomID,
				"row":     row,
				"col":     col,
				"symbol":  res.Player.Symbol,
			}).WithError(persistErr).Error("Failed to persist move")
			return ErrPersistenceFailure
		}
		return nil
	})

	if ended {
		s.enqueuePrune(ctx)
	}
	return err
}

// persistMove 找到或创建房间的未结束记录，追加落子，结束时关闭记录。调用方持有 gate。
func (s *GameService) persistMove(ctx context.Context, roomID string, res domain.MoveResult) error {
	now := s.now()
	defer s.records.InvalidateRoom(ctx, roomID)

	game, err := s.history.FindOpenGame(ctx, roomID)
	if errors.Is(err, repository.ErrGameNotFound) {
		game = newGameRecord(roomID, res.Members, now)
		if err := s.history.CreateGame(ctx, game); err != nil {
			return fmt.Errorf("create game record: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("find open game: %w", err)
	}

	move := &domain.MoveRecord{
		GameRecordID: game.ID,
		Symbol:       res.Player.Symbol,
		Row:          res.Row,
		Col:          res.Col,
		MovedAt:      now,
	}
	if err := s.history.AppendMove(ctx, move); err != nil {
		return fmt.Errorf("append move to game %d: %w", game.ID, err)
	}

	if res.Ended() {
		game.Close(res.Winner(), now)
		if err := s.history.UpdateGame(ctx, game); err != nil {
			return fmt.Errorf("close game %d: %w", game.ID, err)
		}
	}
	return nil
}

func newGameRecord(roomID string, members []domain.Player, now time.Time) *domain.GameRecord {
	game := &domain.GameRecord{RoomID: roomID, StartedAt: now}
	for _, p := range members {
		switch p.Symbol {
		case domain.SymbolX:
			game.PlayerXRef, game.PlayerXUserID, game.PlayerXName = p.ConnectionID, p.UserID, p.Name
		case domain.SymbolO:
			game.PlayerORef, game.PlayerOUserID, game.PlayerOName = p.ConnectionID, p.UserID, p.Name
		}
	}
	return game
}

// closeOpenRecord 关闭房间未结束的记录，没有时返回 false。调用方持有 gate。
func (s *GameService) closeOpenRecord(ctx context.Context, roomID, winner string) (bool, error) {
	game, err := s.history.FindOpenGame(ctx, roomID)
	if errors.Is(err, repository.ErrGameNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find open game: %w", err)
	}
	game.Close(winner, s.now())
	if err := s.history.UpdateGame(ctx, game); err != nil {
		return false, fmt.Errorf("close game %d as %s: %w", game.ID, winner, err)
	}
	s.records.InvalidateRoom(ctx, roomID)
	s.enqueuePrune(ctx)
	return true, nil
}

// Reset 房主重置棋局，未结束的记录以 Reset 关闭
func (s *GameService) Reset(ctx context.Context, caller Caller, roomID string) error {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}
	return room.WithGate(func() error {
		state, err := room.ResetGame(caller.ConnectionID)
		if err != nil {
			return err
		}
		_, closeErr := s.closeOpenRecord(ctx, roomID, domain.WinnerReset)

		s.notifier.SendToConnections(room.Snapshot().ConnectionIDs(), dto.NewEvent(dto.EvtGameReset, dto.GameStateChanged{State: state}))
		logrus.WithFields(logrus.Fields{"room_id": roomID, "conn_id": caller.ConnectionID}).Info("Game reset")

		if closeErr != nil {
			logrus.WithField("room_id", roomID).WithError(closeErr).Error("Failed to close game record on reset")
			return ErrPersistenceFailure
		}
		return nil
	})
}

// RequestHistory 把房间的历史对局（新的在前）和落子发给调用者
func (s *GameService) RequestHistory(ctx context.Context, caller Caller, roomID string) error {
	hist, err := s.records.RoomHistory(ctx, roomID)
	if err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Error("Failed to load room history")
		return ErrPersistenceFailure
	}

	var members []domain.Player
	if room, ok := s.rooms.Get(roomID); ok {
		members = room.Snapshot().Members
	}
	entries := make([]dto.HistoryEntry, 0, len(hist.Games))
	for _, g := range hist.Games {
		entries = append(entries, historyEntry(g, members))
	}
	moves := hist.Moves
	if moves == nil {
		moves = []domain.MoveRecord{}
	}
	s.notifier.SendToConnection(caller.ConnectionID, dto.NewEvent(dto.EvtReceiveHistory, dto.ReceiveHistory{
		Histories: entries,
		Moves:     moves,
	}))
	return nil
}

// InviteFriend 用新房间码建一个私有房间并加入，再通知被邀请者
func (s *GameService) InviteFriend(ctx context.Context, caller Caller, friendUserID string) error {
	if !caller.Authenticated() {
		return ErrNotAuthenticated
	}
	if friendUserID == "" {
		return fmt.Errorf("%w: friendUserId is required", ErrInvalidInput)
	}

	code, err := s.roomCode(s.rooms.Exists)
	if err != nil {
		return err
	}
	if err := s.join(ctx, caller, code, caller.UserName, true); err != nil {
		return err
	}

	delivered := s.notifier.SendToUser(friendUserID, dto.NewEvent(dto.EvtReceiveGameInvite, dto.GameInvite{
		RoomID:     code,
		SenderID:   caller.UserID,
		SenderName: caller.UserName,
	}))
	logrus.WithFields(logrus.Fields{
		"room_id":   code,
		"inviter":   caller.UserID,
		"invitee":   friendUserID,
		"delivered": delivered,
	}).Info("Friend invited")

	s.notifier.SendToConnection(caller.ConnectionID, dto.NewEvent(dto.EvtRoomCreated, dto.RoomCreated{RoomID: code}))
	return nil
}

// AcceptInvite 通知房间有人接受了邀请。加入由客户端随后的 joinRoom 完成。
func (s *GameService) AcceptInvite(ctx context.Context, caller Caller, roomID string) error {
	if !caller.Authenticated() {
		return ErrNotAuthenticated
	}
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}
	snap := room.Snapshot()
	s.notifier.SendToConnections(snap.ConnectionIDs(), dto.NewEvent(dto.EvtInviteAccepted, dto.InviteAccepted{
		RoomID:   roomID,
		UserID:   caller.UserID,
		UserName: caller.UserName,
	}))
	s.notifier.SendToConnection(caller.ConnectionID, dto.NewEvent(dto.EvtInviteSuccess, dto.InviteSuccess{
		RoomID:   roomID,
		HostName: snap.HostName,
	}))
	return nil
}

// InvitePlayer 房间成员直接邀请一个在线连接，被邀请者收到 inviteSuccess。
// 目标连接不在线时静默丢弃。
func (s *GameService) InvitePlayer(ctx context.Context, caller Caller, roomID, inviteeConnID string) error {
	if inviteeConnID == "" {
		return fmt.Errorf("%w: inviteeConnectionId is required", ErrInvalidInput)
	}
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}
	snap := room.Snapshot()
	inviter, ok := snap.Member(caller.ConnectionID)
	if !ok {
		return domain.ErrNotInRoom
	}
	s.notifier.SendToConnection(inviteeConnID, dto.NewEvent(dto.EvtInviteSuccess, dto.InviteSuccess{
		RoomID:      roomID,
		HostName:    snap.HostName,
		InviterName: inviter.Name,
	}))
	logrus.WithFields(logrus.Fields{"room_id": roomID, "conn_id": caller.ConnectionID, "invitee_conn_id": inviteeConnID}).Info("Player invited")
	return nil
}

// RoomExists 房间是否存在及人数
func (s *GameService) RoomExists(roomID string) dto.RoomExistsResult {
	res := dto.RoomExistsResult{RoomID: roomID, Max: domain.RoomCapacity}
	if room, ok := s.rooms.Get(roomID); ok {
		res.Exists = true
		res.Count = room.Count()
	}
	return res
}

// CheckRoomExists 把 RoomExists 的结果发给调用者
func (s *GameService) CheckRoomExists(ctx context.Context, caller Caller, roomID string) error {
	s.notifier.SendToConnection(caller.ConnectionID, dto.NewEvent(dto.EvtRoomExistsResult, s.RoomExists(roomID)))
	return nil
}

// RoomList 公开房间列表，按创建时间排序。邀请创建的私有房间不列出。
func (s *GameService) RoomList() []dto.RoomSummary {
	rooms := s.rooms.Rooms()
	list := make([]dto.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		snap := room.Snapshot()
		if snap.IsPrivate || len(snap.Members) == 0 {
			continue
		}
		list = append(list, dto.RoomSummary{
			RoomID:     snap.ID,
			Name:       snap.Name,
			Count:      len(snap.Members),
			Max:        domain.RoomCapacity,
			HostName:   snap.HostName,
			HostUserID: snap.HostUserID,
			Started:    snap.State.Started,
			CreatedAt:  snap.CreatedAt,
		})
	}
	return list
}

// SendRoomList 把房间列表发给调用者
func (s *GameService) SendRoomList(ctx context.Context, caller Caller) error {
	s.notifier.SendToConnection(caller.ConnectionID, dto.NewEvent(dto.EvtRoomListUpdated, dto.RoomListUpdated{Rooms: s.RoomList()}))
	return nil
}

func (s *GameService) broadcastRoomList() {
	s.notifier.Broadcast(dto.NewEvent(dto.EvtRoomListUpdated, dto.RoomListUpdated{Rooms: s.RoomList()}))
}

// TestConnection 回显调用者的连接和房间身份
func (s *GameService) TestConnection(ctx context.Context, caller Caller, roomID string) error {
	res := dto.TestConnectionResult{ConnectionID: caller.ConnectionID, RoomID: roomID}
	if room, ok := s.rooms.Get(roomID); ok {
		if p, ok := room.Snapshot().Member(caller.ConnectionID); ok {
			res.Player = &p
			res.IsHost = p.IsHost
		}
	}
	s.notifier.SendToConnection(caller.ConnectionID, dto.NewEvent(dto.EvtTestConnectionResult, res))
	return nil
}

func (s *GameService) enqueuePrune(ctx context.Context) {
	if s.pruner == nil {
		return
	}
	if err := s.pruner.EnqueuePrune(ctx); err != nil {
		logrus.WithError(err).Warn("Failed to enqueue history prune task")
	}
}
