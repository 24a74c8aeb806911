package service

import (
	"errors"

	"github.com/DauBapp/WebCoCaro-DACN/internal/domain"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrRoomNotFound         = domain.ErrRoomNotFound
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrRegistrationFailed   = errors.New("registration failed: username already exists")
	ErrInvalidInput         = errors.New("invalid input")
	ErrInternalServer       = errors.New("internal server error")
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrPersistenceFailure   = errors.New("failed to persist game history")
	ErrRoomCodeExhausted    = errors.New("could not generate a free room code")
	ErrRateLimited          = errors.New("too many requests")
	ErrGameNotFound         = errors.New("game not found")
)

// 发给客户端的错误码
const (
	CodeRoomNotFound       = "RoomNotFound"
	CodeRoomFull           = "RoomFull"
	CodeNotHost            = "NotHost"
	CodeNotYourTurn        = "NotYourTurn"
	CodeCellOccupied       = "CellOccupied"
	CodeOutOfBounds        = "OutOfBounds"
	CodeGameAlreadyEnded   = "GameAlreadyEnded"
	CodePersistenceFailure = "PersistenceFailure"
	CodeNotAuthenticated   = "NotAuthenticated"
	CodeGameNotStarted     = "GameNotStarted"
	CodeGameAlreadyStarted = "GameAlreadyStarted"
	CodeNotInRoom          = "NotInRoom"
	CodeInvalidMessage     = "InvalidMessage"
	CodeRateLimited        = "RateLimited"
	CodeInternal           = "Internal"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{domain.ErrRoomNotFound, CodeRoomNotFound},
	{domain.ErrRoomFull, CodeRoomFull},
	{domain.ErrRoomClosed, CodeRoomNotFound},
	{domain.ErrNotHost, CodeNotHost},
	{domain.ErrNotYourTurn, CodeNotYourTurn},
	{domain.ErrCellOccupied, CodeCellOccupied},
	{domain.ErrOutOfBounds, CodeOutOfBounds},
	{domain.ErrGameAlreadyEnded, CodeGameAlreadyEnded},
	{domain.ErrGameNotStarted, CodeGameNotStarted},
	{domain.ErrGameAlreadyStarted, CodeGameAlreadyStarted},
	{domain.ErrNotInRoom, CodeNotInRoom},
	{ErrPersistenceFailure, CodePersistenceFailure},
	{ErrNotAuthenticated, CodeNotAuthenticated},
	{ErrInvalidInput, CodeInvalidMessage},
	{ErrRateLimited, CodeRateLimited},
}

// ErrorCode 把错误映射到错误码，未知错误归为 Internal
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeInternal
}

// ErrorMessage 返回可以展示给客户端的说明，内部错误不暴露细节
func ErrorMessage(err error) string {
	if ErrorCode(err) == CodeInternal {
		return ErrInternalServer.Error()
	}
	return err.Error()
}
