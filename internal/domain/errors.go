package domain

import "errors"

// 棋局与房间规则错误。均为调用方本地错误，不影响房间和连接。
var (
	ErrOutOfBounds        = errors.New("move is outside the board")
	ErrCellOccupied       = errors.New("cell is already occupied")
	ErrNotYourTurn        = errors.New("not your turn")
	ErrGameNotStarted     = errors.New("game has not started")
	ErrGameAlreadyStarted = errors.New("game has already started")
	ErrGameAlreadyEnded   = errors.New("game has already ended")

	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room is full")
	ErrRoomClosed   = errors.New("room has been closed")
	ErrNotInRoom    = errors.New("not a member of this room")
	ErrNotHost      = errors.New("only the host can do this")
)
