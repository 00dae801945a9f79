package model

import (
	"time"
)

// ============================================================================
// 里程碑类型常量
// ============================================================================
//
// 【设计思考】里程碑类型为什么用封闭枚举？
//
// 类型字符串如果随调用方自由传入，打错一个字母就会静默生成
// 一条永远查不到的奖励记录。这里收敛成常量 + 默认奖励表，
// 未知类型在发奖前直接报错，而不是运行时兜底。
// ============================================================================

const (
	MilestoneFirstConversation  = "FIRST_CONVERSATION"   // 首次完成对话会话
	MilestoneTenConversations   = "TEN_CONVERSATIONS"    // 累计完成 10 次对话
	MilestoneFirstModuleSection = "FIRST_MODULE_SECTION" // 首次完成课程小节
	MilestoneModuleCompleted    = "MODULE_COMPLETED"     // 完整学完一个课程模块
	MilestoneQuizPerfect        = "QUIZ_PERFECT"         // 测验满分
)

// DefaultMilestoneRewards 默认里程碑奖励表，可被配置覆盖
var DefaultMilestoneRewards = map[string]int64{
	MilestoneFirstConversation:  50,
	MilestoneTenConversations:   100,
	MilestoneFirstModuleSection: 25,
	MilestoneModuleCompleted:    150,
	MilestoneQuizPerfect:        75,
}

// Milestone 里程碑达成记录
// 唯一键 (user_id, milestone_type, language)：同一语言同一类型只发一次，
// achieved=true 是终态
type Milestone struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         int64      `gorm:"uniqueIndex:uk_user_type_lang;not null" json:"user_id"`
	MilestoneType  string     `gorm:"type:varchar(50);uniqueIndex:uk_user_type_lang;not null" json:"milestone_type"`
	Language       string     `gorm:"type:varchar(20);uniqueIndex:uk_user_type_lang;not null;default:''" json:"language"` // 空串表示与语言无关
	Achieved       bool       `gorm:"not null;default:false" json:"achieved"`
	AchievedAt     *time.Time `json:"achieved_at,omitempty"`
	CreditsAwarded int64      `gorm:"not null;default:0" json:"credits_awarded"`
	Metadata       string     `gorm:"type:varchar(512)" json:"metadata,omitempty"` // 附加信息（JSON 串）
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (Milestone) TableName() string {
	return "milestone"
}

// ============================================================================
// 成就（徽章）
// ============================================================================

// Achievement 成就徽章表，唯一键 (user_id, achievement_type)
// 与里程碑的区别：没有语言维度，纯粹是一次性解锁的徽章，可以不带积分
type Achievement struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID          int64     `gorm:"uniqueIndex:uk_user_ach;not null" json:"user_id"`
	AchievementType string    `gorm:"type:varchar(50);uniqueIndex:uk_user_ach;not null" json:"achievement_type"`
	Title           string    `gorm:"type:varchar(100);not null" json:"title"`
	CreditsAwarded  int64     `gorm:"not null;default:0" json:"credits_awarded"`
	UnlockedAt      time.Time `gorm:"autoCreateTime" json:"unlocked_at"`
}

func (Achievement) TableName() string {
	return "achievement"
}

// StreakBadgeMinDays 连续打卡达到这个档位起，发奖时同步解锁徽章
// （徽章本身不再给积分，积分已由打卡奖励发放）
const StreakBadgeMinDays = 15
