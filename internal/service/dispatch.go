package service

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"github.com/DauBapp/WebCoCaro-DACN/internal/dto"
)

// Handle 执行一条客户端命令。任何错误（包括 panic）都转换成发给调用者的 error 事件，
// 不会向上传播导致连接断开。
func (s *GameService) Handle(ctx context.Context, caller Caller, cmd dto.Command) {
	logCtx := logrus.WithFields(logrus.Fields{
		"conn_id":   caller.ConnectionID,
		"user_id":   caller.UserID,
		"room_id":   cmd.RoomID,
		"operation": cmd.Type,
	})

	defer func() {
		if r := recover(); r != nil {
			logCtx.WithField("stack", string(debug.Stack())).Errorf("Recovered panic while handling command: %v", r)
			s.SendError(caller, ErrInternalServer)
		}
	}()

	err := s.dispatch(ctx, caller, cmd)
	if err == nil {
		return
	}

	if code := ErrorCode(err); code == CodeInternal || code == CodePersistenceFailure {
		logCtx.WithError(err).Error("Command failed")
	} else {
		logCtx.WithError(err).Debug("Command rejected")
	}
	s.SendError(caller, err)
}

func (s *GameService) dispatch(ctx context.Context, caller Caller, cmd dto.Command) error {
	switch cmd.Type {
	case dto.CmdJoinRoom:
		return s.Join(ctx, caller, cmd.RoomID, cmd.Name)
	case dto.CmdLeaveRoom:
		return s.Leave(ctx, caller, cmd.RoomID)
	case dto.CmdStartGame:
		return s.Start(ctx, caller, cmd.RoomID)
	case dto.CmdMakeMove:
		if cmd.Row == nil || cmd.Col == nil {
			return fmt.Errorf("%w: row and col are required", ErrInvalidInput)
		}
		return s.Move(ctx, caller, cmd.RoomID, *cmd.Row, *cmd.Col)
	case dto.CmdResetGame:
		return s.Reset(ctx, caller, cmd.RoomID)
	case dto.CmdRequestHistory:
		return s.RequestHistory(ctx, caller, cmd.RoomID)
	case dto.CmdInviteFriend:
		return s.InviteFriend(ctx, caller, cmd.FriendUserID)
	case dto.CmdCheckRoomExists:
		return s.CheckRoomExists(ctx, caller, cmd.RoomID)
	case dto.CmdGetRoomList:
		return s.SendRoomList(ctx, caller)
	case dto.CmdAcceptInvite:
		return s.AcceptInvite(ctx, caller, cmd.RoomID)
	case dto.CmdInvitePlayer:
		return s.InvitePlayer(ctx, caller, cmd.RoomID, cmd.InviteeConnectionID)
	case dto.CmdTestConnection:
		return s.TestConnection(ctx, caller, cmd.RoomID)
	default:
		return fmt.Errorf("%w: unknown command type '%s'", ErrInvalidInput, cmd.Type)
	}
}

// SendError 把错误以 {code, message} 发给调用者
func (s *GameService) SendError(caller Caller, err error) {
	s.notifier.SendToConnection(caller.ConnectionID, dto.NewEvent(dto.EvtError, dto.Error{
		Code:    ErrorCode(err),
		Message: ErrorMessage(err),
	}))
}
