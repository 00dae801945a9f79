package model

import (
	"time"
)

// ============================================================================
// 流水类型常量
// ============================================================================

const (
	LedgerKindPurchase = "PURCHASE" // 购买积分（充值）
	LedgerKindUsage    = "USAGE"    // 消耗积分（会话、课程模块）
	LedgerKindReward   = "REWARD"   // 奖励积分（打卡、里程碑、成就）
)

// ============================================================================
// 流水状态机
// ============================================================================

const (
	LedgerStatusPending   = "PENDING"   // 购买流水创建后、支付回调前
	LedgerStatusCompleted = "COMPLETED" // 已生效，计入余额
	LedgerStatusCancelled = "CANCELLED" // 购买超时未支付，作废
)

// ValidLedgerTransitions 流水状态只允许 PENDING 单向流转一次，
// COMPLETED / CANCELLED 都是终态
var ValidLedgerTransitions = map[string][]string{
	LedgerStatusPending: {LedgerStatusCompleted, LedgerStatusCancelled},
}

func CanLedgerTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidLedgerTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// ============================================================================
// 积分流水实体
// ============================================================================

// LedgerEntry 积分流水表
// 记录账户的每一笔积分变动，是对账的核心依据
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除 —— 保证审计可追溯
//    （唯一例外：购买流水 PENDING -> COMPLETED/CANCELLED 的一次状态流转）
// 2. 余额只允许和 COMPLETED 流水同事务变动 —— 保证余额守恒：
//    任何时刻 balance == 该用户所有 COMPLETED 流水 amount 之和
// 3. 记录交易前后余额 —— 便于校验余额一致性
type LedgerEntry struct {
	ID                int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	EntryNo           string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"entry_no"` // 流水号（全局唯一）
	RequestID         string     `gorm:"type:varchar(64);index" json:"request_id"`              // 幂等ID，购买流水必填
	UserID            int64      `gorm:"index;not null" json:"user_id"`
	Kind              string     `gorm:"type:varchar(20);not null" json:"kind"`                  // PURCHASE / USAGE / REWARD
	Amount            int64      `gorm:"not null" json:"amount"`                                 // 积分变动（正数入账，负数出账）
	Status            string     `gorm:"type:varchar(20);index;not null" json:"status"`          // PENDING / COMPLETED / CANCELLED
	Description       string     `gorm:"type:varchar(256)" json:"description"`                   // 备注
	PriceCents        int64      `gorm:"not null;default:0" json:"price_cents"`                  // 购买流水的现金价格（分）
	ExternalPaymentID string     `gorm:"type:varchar(64)" json:"external_payment_id,omitempty"`  // 支付渠道单号
	BalanceBefore     int64      `gorm:"not null;default:0" json:"balance_before"`               // 生效前余额
	BalanceAfter      int64      `gorm:"not null;default:0" json:"balance_after"`                // 生效后余额
	ExpiredAt         *time.Time `json:"expired_at,omitempty"`                                   // 购买流水的支付截止时间
	CompletedAt       *time.Time `json:"completed_at,omitempty"`                                 // 生效时间
	CreatedAt         time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entry"
}
