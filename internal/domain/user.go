package domain

import "time"

// User 注册用户。对局内的身份仍以连接为准，User 只提供持久的 ID 和显示名。
type User struct {
	ID          uint      `gorm:"primaryKey"`
	Username    string    `gorm:"type:varchar(191);uniqueIndex:idx_username;not null"`
	Password    string    `gorm:"type:text;not null" json:"-"` // bcrypt 哈希
	Email       string    `gorm:"type:varchar(191);index:idx_email"`
	DisplayName string    `gorm:"type:varchar(191)"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// Name 优先使用显示名
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}
