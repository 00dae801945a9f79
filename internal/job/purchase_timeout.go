package job

import (
	"context"
	"log"
	"time"

	"lingocredit/internal/config"
	"lingocredit/internal/model"
	"lingocredit/internal/repository"

	"gorm.io/gorm"
)

// PurchaseTimeoutJob 购买超时任务
// 定期把超过支付截止时间仍是 PENDING 的购买流水置为 CANCELLED。
// 作废只改状态、不动余额——PENDING 流水本来就没入过账
type PurchaseTimeoutJob struct {
	db         *gorm.DB
	ledgerRepo *repository.LedgerRepository
	cfg        *config.Config
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
}

func NewPurchaseTimeoutJob(db *gorm.DB, cfg *config.Config) *PurchaseTimeoutJob {
	return &PurchaseTimeoutJob{
		db:         db,
		ledgerRepo: repository.NewLedgerRepository(db),
		cfg:        cfg,
		stopCh:     make(chan struct{}),
		interval:   10 * time.Second,
		batchSize:  100,
	}
}

func (j *PurchaseTimeoutJob) Start(ctx context.Context) {
	log.Println("[PurchaseTimeoutJob] 购买超时任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[PurchaseTimeoutJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[PurchaseTimeoutJob] 任务停止")
			return
		case <-ticker.C:
			j.cancelExpiredPurchases(ctx)
		}
	}
}

func (j *PurchaseTimeoutJob) Stop() {
	close(j.stopCh)
}

func (j *PurchaseTimeoutJob) cancelExpiredPurchases(ctx context.Context) {
	entries, err := j.ledgerRepo.GetExpiredPending(ctx, j.batchSize)
	if err != nil {
		log.Printf("[PurchaseTimeoutJob] 查询超时购买单失败: %v", err)
		return
	}

	if len(entries) == 0 {
		return
	}

	log.Printf("[PurchaseTimeoutJob] 发现 %d 个超时购买单", len(entries))

	cancelledCount := 0
	for _, entry := range entries {
		// 条件流转：支付回调和超时作废竞争同一条流水时，只有一方能赢
		err := j.ledgerRepo.UpdateStatus(ctx, nil, entry.EntryNo,
			model.LedgerStatusPending, model.LedgerStatusCancelled, nil)
		if err != nil {
			log.Printf("[PurchaseTimeoutJob] 作废购买单失败: entryNo=%s, err=%v", entry.EntryNo, err)
			continue
		}
		cancelledCount++
		log.Printf("[PurchaseTimeoutJob] 购买单已超时作废: entryNo=%s, userID=%d, credits=%d",
			entry.EntryNo, entry.UserID, entry.Amount)
	}

	log.Printf("[PurchaseTimeoutJob] 本次作废 %d 个超时购买单", cancelledCount)
}
