package repository

import (
	"context"
	"errors"
	"time"

	"lingocredit/internal/model"

	"gorm.io/gorm"
)

var (
	ErrEntryNotFound      = errors.New("流水不存在")
	ErrEntryStatusInvalid = errors.New("流水状态不允许该操作")
)

type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) Create(ctx context.Context, tx *gorm.DB, entry *model.LedgerEntry) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(entry).Error
}

func (r *LedgerRepository) GetByEntryNo(ctx context.Context, entryNo string) (*model.LedgerEntry, error) {
	var entry model.LedgerEntry
	err := r.db.WithContext(ctx).Where("entry_no = ?", entryNo).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// GetByRequestID 按幂等ID查购买流水，不存在返回 nil
func (r *LedgerRepository) GetByRequestID(ctx context.Context, requestID string) (*model.LedgerEntry, error) {
	var entry model.LedgerEntry
	err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// UpdateStatus 条件流转流水状态
//
// 【关键点】WHERE 带上 fromStatus，RowsAffected == 0 即状态已被别人改过，
// 这是"一条购买流水只能生效一次"的数据库层保证
func (r *LedgerRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, entryNo string, fromStatus, toStatus string, updates map[string]interface{}) error {
	if !model.CanLedgerTransitionTo(fromStatus, toStatus) {
		return ErrEntryStatusInvalid
	}

	if tx == nil {
		tx = r.db
	}

	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = toStatus
	if toStatus == model.LedgerStatusCompleted {
		now := time.Now()
		updates["completed_at"] = &now
	}

	result := tx.WithContext(ctx).
		Model(&model.LedgerEntry{}).
		Where("entry_no = ? AND status = ?", entryNo, fromStatus).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrEntryStatusInvalid
	}

	return nil
}

func (r *LedgerRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.LedgerEntry, int64, error) {
	var entries []*model.LedgerEntry
	var total int64

	query := r.db.WithContext(ctx).Model(&model.LedgerEntry{}).Where("user_id = ?", userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&entries).Error

	return entries, total, err
}

// SumCompletedByUserID 该用户所有 COMPLETED 流水的金额之和，对账用
func (r *LedgerRepository) SumCompletedByUserID(ctx context.Context, userID int64) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).
		Model(&model.LedgerEntry{}).
		Where("user_id = ? AND status = ?", userID, model.LedgerStatusCompleted).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	return sum, err
}

// GetExpiredPending 查询已过支付截止时间的 PENDING 购买流水
func (r *LedgerRepository) GetExpiredPending(ctx context.Context, limit int) ([]*model.LedgerEntry, error) {
	var entries []*model.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("kind = ? AND status = ? AND expired_at < ?",
			model.LedgerKindPurchase, model.LedgerStatusPending, time.Now()).
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
