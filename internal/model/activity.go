package model

import (
	"time"
)

// DailyActivity 每日学习活动聚合表
// 每个用户每个日历日至多一行，所有计数字段只做累加
//
// 【关键点】唯一键 (user_id, activity_date) 是"一天一行"语义的落点：
// 并发写入同一天时靠 ON DUPLICATE KEY UPDATE 做原子累加，不做先查后插
type DailyActivity struct {
	ID                  int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID              int64     `gorm:"uniqueIndex:uk_user_date;not null" json:"user_id"`
	ActivityDate        time.Time `gorm:"type:date;uniqueIndex:uk_user_date;not null" json:"activity_date"` // 所属日历日（时区零点）
	HasActivity         bool      `gorm:"not null;default:false" json:"has_activity"`                       // 当天有过任一活动后恒为 true
	ConversationCount   int       `gorm:"not null;default:0" json:"conversation_count"`                     // 完成的对话会话数
	ModuleProgressCount int       `gorm:"not null;default:0" json:"module_progress_count"`                  // 完成的课程模块小节数
	TimeSpentSeconds    int       `gorm:"not null;default:0" json:"time_spent_seconds"`                     // 学习时长（秒）
	CreditsEarned       int64     `gorm:"not null;default:0" json:"credits_earned"`                         // 当天通过活动获得的积分
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (DailyActivity) TableName() string {
	return "daily_activity"
}

// ActivityDelta 单次活动的增量，各字段累加到当天的聚合行上
type ActivityDelta struct {
	Conversations    int   `json:"conversations"`
	ModuleProgress   int   `json:"module_progress"`
	TimeSpentSeconds int   `json:"time_spent_seconds"`
	CreditsEarned    int64 `json:"credits_earned"`
}

// IsZero 全零增量不落库
func (d ActivityDelta) IsZero() bool {
	return d.Conversations == 0 && d.ModuleProgress == 0 &&
		d.TimeSpentSeconds == 0 && d.CreditsEarned == 0
}
