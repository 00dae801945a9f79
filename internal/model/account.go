package model

import (
	"time"
)

// Account 用户积分账户表
// 记录用户的积分余额，是整个积分系统的核心数据
type Account struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"uniqueIndex;not null" json:"user_id"` // 用户ID，由身份服务传入
	Balance   int64     `gorm:"not null;default:0" json:"balance"`   // 可用积分余额，任何时刻不允许为负
	Version   int       `gorm:"not null;default:0" json:"version"`   // 乐观锁版本号
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}
