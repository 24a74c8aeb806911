package service

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	roomCodeAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	roomCodeLength      = 6
	maxRoomCodeAttempts = 10
)

// GenerateRoomCode 生成 6 位大写字母数字房间码，taken 返回 true 时换一个重试
func GenerateRoomCode(taken func(code string) bool) (string, error) {
	for attempt := 0; attempt < maxRoomCodeAttempts; attempt++ {
		code, err := gonanoid.Generate(roomCodeAlphabet, roomCodeLength)
		if err != nil {
			return "", fmt.Errorf("generate room code: %w", err)
		}
		if taken == nil || !taken(code) {
			return code, nil
		}
	}
	return "", ErrRoomCodeExhausted
}
