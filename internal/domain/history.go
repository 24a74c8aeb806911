package domain

import "time"

// GameRecord 持久化的一局对局摘要。EndedAt 为 nil 表示仍在进行。
//
// PlayerXRef/PlayerORef 是建局时的连接 ID；UserID 与 Name 是同一时刻的快照，
// 连接断开后仍可用于展示。
type GameRecord struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	RoomID        string       `gorm:"type:varchar(64);index:idx_game_room;not null" json:"roomId"`
	PlayerXRef    string       `gorm:"type:varchar(64)" json:"playerXRef"`
	PlayerORef    string       `gorm:"type:varchar(64)" json:"playerORef"`
	PlayerXUserID string       `gorm:"type:varchar(64)" json:"playerXUserId,omitempty"`
	PlayerOUserID string       `gorm:"type:varchar(64)" json:"playerOUserId,omitempty"`
	PlayerXName   string       `gorm:"type:varchar(191)" json:"playerXName,omitempty"`
	PlayerOName   string       `gorm:"type:varchar(191)" json:"playerOName,omitempty"`
	StartedAt     time.Time    `gorm:"index:idx_game_started;not null" json:"startedAt"`
	EndedAt       *time.Time   `gorm:"index" json:"endedAt"`
	Winner        string       `gorm:"type:varchar(16)" json:"winner"`
	Moves         []MoveRecord `gorm:"foreignKey:GameRecordID;constraint:OnDelete:CASCADE" json:"-"`
}

func (GameRecord) TableName() string { return "game_histories" }

// IsOpen 是否尚未结束
func (g *GameRecord) IsOpen() bool { return g.EndedAt == nil }

// Close 记录结束时间和结果
func (g *GameRecord) Close(winner string, at time.Time) {
	g.EndedAt = &at
	g.Winner = winner
}

// MoveRecord 一步落子，只追加，随所属 GameRecord 级联删除
type MoveRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	GameRecordID uint      `gorm:"index:idx_move_game;not null" json:"gameRecordId"`
	Symbol       Symbol    `gorm:"type:varchar(1);not null" json:"symbol"`
	Row          int       `gorm:"not null" json:"row"`
	Col          int       `gorm:"not null" json:"col"`
	MovedAt      time.Time `gorm:"index:idx_move_game;not null" json:"movedAt"`
}

func (MoveRecord) TableName() string { return "move_records" }

// RoomHistory 某房间的对局（新的在前）及其落子（按时间升序）
type RoomHistory struct {
	Games []GameRecord `json:"games"`
	Moves []MoveRecord `json:"moves"`
}
