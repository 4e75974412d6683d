// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// User 是拥有 Record 与 InterviewSession 的账户。认证本身不在核心范围内
// （由外部协作者负责签发凭证），这里只保留核心需要的最小字段。
type User struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username  string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	Password  string    `gorm:"type:varchar(255);not null" json:"-"`
	Role      string    `gorm:"type:varchar(20);not null;default:USER" json:"role"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (User) TableName() string {
	return "users"
}
