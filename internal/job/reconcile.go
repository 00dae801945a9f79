package job

import (
	"context"
	"log"
	"time"

	"lingocredit/internal/model"
	"lingocredit/internal/repository"

	"gorm.io/gorm"
)

// ============================================================================
// 对账任务
// ============================================================================
//
// 系统的根规则：任何用户的余额 == 其所有 COMPLETED 流水之和。
// 代码层面靠"余额和流水同事务写入"保证，这个任务是独立的第二双眼睛：
// 定期抽查最近有变动的账户，发现不一致立刻告警日志。
// 对账任务只读不写——修数是人的决定，不是任务的
// ============================================================================

type LedgerReconcileJob struct {
	db          *gorm.DB
	accountRepo *repository.AccountRepository
	ledgerRepo  *repository.LedgerRepository
	stopCh      chan struct{}
	interval    time.Duration
	batchSize   int
}

func NewLedgerReconcileJob(db *gorm.DB) *LedgerReconcileJob {
	return &LedgerReconcileJob{
		db:          db,
		accountRepo: repository.NewAccountRepository(db),
		ledgerRepo:  repository.NewLedgerRepository(db),
		stopCh:      make(chan struct{}),
		interval:    5 * time.Minute,
		batchSize:   200,
	}
}

func (j *LedgerReconcileJob) Start(ctx context.Context) {
	log.Println("[LedgerReconcileJob] 对账任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[LedgerReconcileJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[LedgerReconcileJob] 任务停止")
			return
		case <-ticker.C:
			j.reconcileRecentAccounts(ctx)
		}
	}
}

func (j *LedgerReconcileJob) Stop() {
	close(j.stopCh)
}

func (j *LedgerReconcileJob) reconcileRecentAccounts(ctx context.Context) {
	since := time.Now().Add(-j.interval * 2)

	var accounts []*model.Account
	err := j.db.WithContext(ctx).
		Where("updated_at > ?", since).
		Limit(j.batchSize).
		Find(&accounts).Error
	if err != nil {
		log.Printf("[LedgerReconcileJob] 查询账户失败: %v", err)
		return
	}

	if len(accounts) == 0 {
		return
	}

	mismatch := 0
	for _, account := range accounts {
		sum, err := j.ledgerRepo.SumCompletedByUserID(ctx, account.UserID)
		if err != nil {
			log.Printf("[LedgerReconcileJob] 汇总流水失败: userID=%d, err=%v", account.UserID, err)
			continue
		}

		// 抽查瞬间账户可能正在变动，复查一次再定性
		if sum != account.Balance {
			fresh, err := j.accountRepo.GetByUserID(ctx, account.UserID)
			if err != nil {
				continue
			}
			sum, err = j.ledgerRepo.SumCompletedByUserID(ctx, account.UserID)
			if err != nil || sum == fresh.Balance {
				continue
			}
			mismatch++
			log.Printf("[LedgerReconcileJob] 【对账不一致】userID=%d, balance=%d, ledgerSum=%d",
				account.UserID, fresh.Balance, sum)
		}
	}

	log.Printf("[LedgerReconcileJob] 本次抽查 %d 个账户，异常 %d 个", len(accounts), mismatch)
}
