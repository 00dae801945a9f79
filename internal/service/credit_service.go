package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lingocredit/internal/config"
	"lingocredit/internal/infrastructure/cache"
	"lingocredit/internal/model"
	"lingocredit/internal/repository"
	"lingocredit/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// ============================================================================
// 积分账本服务
// ============================================================================
//
// 【重要】余额守恒是整个系统的根规则：
//
//   任何时刻 account.balance == 该用户所有 COMPLETED 流水 amount 之和
//
// 落实手段只有一个——余额变动和它对应的流水永远在同一个数据库事务里写入，
// 事务外不存在任何直接改余额的入口。
// ============================================================================

type CreditService struct {
	db          *gorm.DB
	redisClient *redis.Client
	cfg         *config.Config
	accountRepo *repository.AccountRepository
	ledgerRepo  *repository.LedgerRepository
}

func NewCreditService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *CreditService {
	return &CreditService{
		db:          db,
		redisClient: redisClient,
		cfg:         cfg,
		accountRepo: repository.NewAccountRepository(db),
		ledgerRepo:  repository.NewLedgerRepository(db),
	}
}

// GetBalance 查询余额，走短 TTL 缓存
func (s *CreditService) GetBalance(ctx context.Context, userID int64) (int64, error) {
	if balance, ok := cache.GetBalance(ctx, s.redisClient, userID); ok {
		return balance, nil
	}

	account, err := s.accountRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return 0, nil
		}
		return 0, err
	}

	cache.SetBalance(ctx, s.redisClient, userID, account.Balance,
		time.Duration(s.cfg.Business.BalanceCacheSeconds)*time.Second)
	return account.Balance, nil
}

func (s *CreditService) GetAccount(ctx context.Context, userID int64) (*model.Account, error) {
	return s.accountRepo.GetOrCreate(ctx, userID)
}

func (s *CreditService) ListLedger(ctx context.Context, userID int64, page, pageSize int) ([]*model.LedgerEntry, int64, error) {
	return s.ledgerRepo.ListByUserID(ctx, userID, page, pageSize)
}

// ApplyLedgerChange 变动积分：追加一条 COMPLETED 流水并同事务调整余额
//
// amount 为负是出账，余额不足返回 repository.ErrInsufficientCredits 且不落任何写入；
// amount 为正是入账。成功后删除余额缓存
func (s *CreditService) ApplyLedgerChange(ctx context.Context, userID int64, amount int64, kind, description string) (*model.LedgerEntry, error) {
	var entry *model.LedgerEntry
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = s.ApplyInTx(ctx, tx, userID, amount, kind, description, "")
		return err
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidateBalance(ctx, s.redisClient, userID)
	return entry, nil
}

// ApplyInTx 在调用方已开启的事务里变动积分
//
// 发奖、购买完成等链路复用这个入口，把记账挂进自己的事务，
// 保证"发奖标记 + 积分到账"要么一起提交、要么一起回滚。
// entryNo 传空串则自动生成；调用方需要预先占号时（比如先写奖励记录）可以传入
func (s *CreditService) ApplyInTx(ctx context.Context, tx *gorm.DB, userID int64, amount int64, kind, description, entryNo string) (*model.LedgerEntry, error) {
	if amount == 0 {
		return nil, fmt.Errorf("积分变动金额不能为 0")
	}

	account, err := s.accountRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("获取账户信息失败: %w", err)
	}

	if amount < 0 {
		// 条件更新 + 乐观锁，余额不足或版本冲突都在这里拦下
		if err := s.accountRepo.Deduct(ctx, tx, userID, -amount, account.Version); err != nil {
			return nil, err
		}
	} else {
		if err := s.accountRepo.Increase(ctx, tx, userID, amount); err != nil {
			return nil, fmt.Errorf("入账失败: %w", err)
		}
	}

	if entryNo == "" {
		entryNo = idgen.GenerateEntryNo()
	}

	now := time.Now()
	entry := &model.LedgerEntry{
		EntryNo:       entryNo,
		UserID:        userID,
		Kind:          kind,
		Amount:        amount,
		Status:        model.LedgerStatusCompleted,
		Description:   description,
		BalanceBefore: account.Balance,
		BalanceAfter:  account.Balance + amount,
		CompletedAt:   &now,
	}
	if err := s.ledgerRepo.Create(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("记录流水失败: %w", err)
	}

	return entry, nil
}

// SpendCredits 消耗积分（开始对话会话、解锁课程模块等）
func (s *CreditService) SpendCredits(ctx context.Context, userID int64, amount int64, reason string) (*model.LedgerEntry, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("消耗金额必须大于 0")
	}
	return s.ApplyLedgerChange(ctx, userID, -amount, model.LedgerKindUsage, reason)
}
