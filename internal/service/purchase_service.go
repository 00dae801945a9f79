package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"lingocredit/internal/config"
	"lingocredit/internal/infrastructure/cache"
	"lingocredit/internal/infrastructure/lock"
	"lingocredit/internal/model"
	"lingocredit/internal/repository"
	"lingocredit/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// ============================================================================
// 购买服务：两阶段积分购买
// ============================================================================
//
// 阶段一 CreatePendingPurchase：落一条 PENDING 流水，不动余额。
// 阶段二 CompletePurchase：支付渠道回调后，把流水推到 COMPLETED
// 并同事务给余额入账。
//
// 【关键点】一条购买流水只能生效一次：
//   1. 状态机只允许 PENDING -> COMPLETED/CANCELLED 各一次
//   2. 状态流转用条件更新（WHERE status = 'PENDING'），数据库层兜底
//   3. 用户维度分布式锁把同一用户的回调串行化，让重复回调拿到
//      干净的 ErrAlreadyProcessed 而不是撞进事务冲突
// ============================================================================

type PurchaseService struct {
	db          *gorm.DB
	redisClient *redis.Client
	cfg         *config.Config
	accountRepo *repository.AccountRepository
	ledgerRepo  *repository.LedgerRepository
	outboxRepo  *repository.OutboxRepository
}

func NewPurchaseService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *PurchaseService {
	return &PurchaseService{
		db:          db,
		redisClient: redisClient,
		cfg:         cfg,
		accountRepo: repository.NewAccountRepository(db),
		ledgerRepo:  repository.NewLedgerRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
	}
}

type CreatePurchaseRequest struct {
	RequestID  string `json:"request_id" binding:"required"` // 幂等ID，客户端生成
	UserID     int64  `json:"-"`
	Credits    int64  `json:"credits" binding:"required,gt=0"`     // 购买的积分数
	PriceCents int64  `json:"price_cents" binding:"required,gt=0"` // 现金价格（分）
}

type PurchaseResponse struct {
	EntryNo string `json:"entry_no"`
	Status  string `json:"status"`
	Credits int64  `json:"credits"`
	Balance int64  `json:"balance,omitempty"`
	Message string `json:"message,omitempty"`
}

// CreatePendingPurchase 创建待支付的购买流水，对余额零影响
func (s *PurchaseService) CreatePendingPurchase(ctx context.Context, req *CreatePurchaseRequest) (*PurchaseResponse, error) {
	// 幂等校验：同一 request_id 直接返回已有流水
	existing, err := s.ledgerRepo.GetByRequestID(ctx, req.RequestID)
	if err != nil {
		return nil, fmt.Errorf("查询流水失败: %w", err)
	}
	if existing != nil {
		return &PurchaseResponse{
			EntryNo: existing.EntryNo,
			Status:  existing.Status,
			Credits: existing.Amount,
			Message: "购买单已存在",
		}, nil
	}

	// 账户不存在则先建出来，避免回调时才发现没有账户
	if _, err := s.accountRepo.GetOrCreate(ctx, req.UserID); err != nil {
		return nil, fmt.Errorf("获取账户信息失败: %w", err)
	}

	expiredAt := time.Now().Add(time.Duration(s.cfg.Business.PurchaseTimeoutMinutes) * time.Minute)
	entry := &model.LedgerEntry{
		EntryNo:     idgen.GeneratePurchaseNo(),
		RequestID:   req.RequestID,
		UserID:      req.UserID,
		Kind:        model.LedgerKindPurchase,
		Amount:      req.Credits,
		Status:      model.LedgerStatusPending,
		Description: fmt.Sprintf("购买积分-%d", req.Credits),
		PriceCents:  req.PriceCents,
		ExpiredAt:   &expiredAt,
	}

	if err := s.ledgerRepo.Create(ctx, nil, entry); err != nil {
		return nil, fmt.Errorf("创建购买单失败: %w", err)
	}

	log.Printf("购买单创建: entryNo=%s, userID=%d, credits=%d", entry.EntryNo, req.UserID, req.Credits)

	return &PurchaseResponse{
		EntryNo: entry.EntryNo,
		Status:  entry.Status,
		Credits: entry.Amount,
	}, nil
}

type CompletePurchaseRequest struct {
	EntryNo           string `json:"entry_no" binding:"required"`
	ExternalPaymentID string `json:"external_payment_id" binding:"required"` // 支付渠道单号
	UserID            int64  `json:"-"`
}

// CompletePurchase 完成购买：PENDING -> COMPLETED 并入账，只会成功一次
func (s *PurchaseService) CompletePurchase(ctx context.Context, req *CompletePurchaseRequest) (*PurchaseResponse, error) {
	entry, err := s.ledgerRepo.GetByEntryNo(ctx, req.EntryNo)
	if err != nil {
		if errors.Is(err, repository.ErrEntryNotFound) {
			return nil, repository.ErrEntryNotFound
		}
		return nil, fmt.Errorf("查询购买单失败: %w", err)
	}
	if entry.UserID != req.UserID {
		return nil, ErrNotOwned
	}
	if entry.Status != model.LedgerStatusPending {
		return nil, ErrAlreadyProcessed
	}

	// 用户维度锁：重复回调、并发回调在这里排队
	userLock := lock.NewUserCreditLock(s.redisClient, req.UserID, req.EntryNo)
	if err := userLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer userLock.Unlock(ctx)

	// 获取锁后再查一次，拿锁前可能已被处理
	entry, err = s.ledgerRepo.GetByEntryNo(ctx, req.EntryNo)
	if err != nil {
		return nil, err
	}
	if entry.Status != model.LedgerStatusPending {
		return nil, ErrAlreadyProcessed
	}

	account, err := s.accountRepo.GetOrCreate(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("获取账户信息失败: %w", err)
	}

	newBalance := account.Balance + entry.Amount

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// 条件流转，状态已变则整个事务失败
		updates := map[string]interface{}{
			"external_payment_id": req.ExternalPaymentID,
			"balance_before":      account.Balance,
			"balance_after":       newBalance,
		}
		if err := s.ledgerRepo.UpdateStatus(ctx, tx, req.EntryNo,
			model.LedgerStatusPending, model.LedgerStatusCompleted, updates); err != nil {
			if errors.Is(err, repository.ErrEntryStatusInvalid) {
				return ErrAlreadyProcessed
			}
			return fmt.Errorf("更新购买单状态失败: %w", err)
		}

		if err := s.accountRepo.Increase(ctx, tx, req.UserID, entry.Amount); err != nil {
			return fmt.Errorf("入账失败: %w", err)
		}

		msgPayload := map[string]interface{}{
			"entry_no":            req.EntryNo,
			"user_id":             req.UserID,
			"credits":             entry.Amount,
			"price_cents":         entry.PriceCents,
			"external_payment_id": req.ExternalPaymentID,
			"status":              model.LedgerStatusCompleted,
			"completed_at":        time.Now().Format(time.RFC3339),
		}
		payloadBytes, _ := json.Marshal(msgPayload)

		outboxMsg := &model.OutboxMessage{
			MessageKey: req.EntryNo,
			Topic:      s.cfg.Kafka.Topic.PurchaseResult,
			Payload:    string(payloadBytes),
			Status:     model.OutboxStatusPending,
		}
		if err := s.outboxRepo.Create(ctx, tx, outboxMsg); err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	cache.InvalidateBalance(ctx, s.redisClient, req.UserID)

	log.Printf("购买完成: entryNo=%s, userID=%d, credits=%d", req.EntryNo, req.UserID, entry.Amount)

	return &PurchaseResponse{
		EntryNo: req.EntryNo,
		Status:  model.LedgerStatusCompleted,
		Credits: entry.Amount,
		Balance: newBalance,
	}, nil
}
