package model

import (
	"time"
)

// StreakState 连续打卡状态表，每个用户一行
//
// 【重要】这张表是派生数据：永远由 daily_activity 历史重算得出，
// 不允许在别处独立修改。不变式：longest_streak >= current_streak
type StreakState struct {
	ID               int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID           int64      `gorm:"uniqueIndex;not null" json:"user_id"`
	CurrentStreak    int        `gorm:"not null;default:0" json:"current_streak"`
	LongestStreak    int        `gorm:"not null;default:0" json:"longest_streak"`
	LastActivityDate *time.Time `gorm:"type:date" json:"last_activity_date,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (StreakState) TableName() string {
	return "streak_state"
}

// StreakReward 连续打卡奖励发放记录
//
// 【关键点】唯一键 (user_id, streak_days) 就是幂等护栏：
// 行存在 = 该档位已发过奖，发奖前用条件插入探测，插入失败即静默跳过
type StreakReward struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         int64     `gorm:"uniqueIndex:uk_user_days;not null" json:"user_id"`
	StreakDays     int       `gorm:"uniqueIndex:uk_user_days;not null" json:"streak_days"` // 达成的档位天数
	CreditsAwarded int64     `gorm:"not null" json:"credits_awarded"`
	EntryNo        string    `gorm:"type:varchar(64)" json:"entry_no"` // 对应的积分流水号
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (StreakReward) TableName() string {
	return "streak_reward"
}
