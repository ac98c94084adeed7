package models

import (
	"time"
)

type GameSession struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	UserId       int        `gorm:"column:user_id;not null;index" json:"user_id"`
	GameName     string     `gorm:"column:game_name;size:100" json:"game_name"`
	SessionToken string     `gorm:"column:session_token;size:64;not null;uniqueIndex" json:"-"`
	IsActive     bool       `gorm:"column:is_active;not null;default:true" json:"is_active"`
	StartedAt    time.Time  `gorm:"column:started_at;not null" json:"started_at"`
	EndedAt      *time.Time `gorm:"column:ended_at" json:"ended_at,omitempty"`
}

func (GameSession) TableName() string {
	return "game_sessions"
}

type GameLaunchToken struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	GameSessionId string    `gorm:"column:game_session_id;size:36;not null;index" json:"game_session_id"`
	LaunchToken   string    `gorm:"column:launch_token;size:64;not null;uniqueIndex" json:"launch_token"`
	ExpiresAt     time.Time `gorm:"column:expires_at;not null" json:"expires_at"`
	Used          bool      `gorm:"column:used;not null;default:false" json:"used"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (GameLaunchToken) TableName() string {
	return "game_launch_tokens"
}
