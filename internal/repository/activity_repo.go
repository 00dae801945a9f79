package repository

import (
	"context"
	"errors"
	"time"

	"lingocredit/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ActivityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// UpsertIncrement 把一次活动的增量累加到当天的聚合行上
//
// 【关键点】一条 SQL 完成"不存在则插入、存在则累加"：
// 不做先查再分支的写法，检查和写入之间没有并发窗口。
// has_activity 首次活动置 true 后保持 true，各计数字段只加不覆盖
func (r *ActivityRepository) UpsertIncrement(ctx context.Context, tx *gorm.DB, userID int64, date time.Time, delta model.ActivityDelta) error {
	if tx == nil {
		tx = r.db
	}

	row := &model.DailyActivity{
		UserID:              userID,
		ActivityDate:        date,
		HasActivity:         true,
		ConversationCount:   delta.Conversations,
		ModuleProgressCount: delta.ModuleProgress,
		TimeSpentSeconds:    delta.TimeSpentSeconds,
		CreditsEarned:       delta.CreditsEarned,
	}

	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "activity_date"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"has_activity":          true,
				"conversation_count":    gorm.Expr("conversation_count + ?", delta.Conversations),
				"module_progress_count": gorm.Expr("module_progress_count + ?", delta.ModuleProgress),
				"time_spent_seconds":    gorm.Expr("time_spent_seconds + ?", delta.TimeSpentSeconds),
				"credits_earned":        gorm.Expr("credits_earned + ?", delta.CreditsEarned),
			}),
		}).
		Create(row).Error
}

func (r *ActivityRepository) GetByUserAndDate(ctx context.Context, tx *gorm.DB, userID int64, date time.Time) (*model.DailyActivity, error) {
	if tx == nil {
		tx = r.db
	}
	var activity model.DailyActivity
	err := tx.WithContext(ctx).
		Where("user_id = ? AND activity_date = ?", userID, date).
		First(&activity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &activity, nil
}

// ListActiveDates 该用户所有有活动的日历日，按日期降序
// 连续打卡重算的唯一数据来源
func (r *ActivityRepository) ListActiveDates(ctx context.Context, tx *gorm.DB, userID int64) ([]time.Time, error) {
	if tx == nil {
		tx = r.db
	}
	var dates []time.Time
	err := tx.WithContext(ctx).
		Model(&model.DailyActivity{}).
		Where("user_id = ? AND has_activity = ?", userID, true).
		Order("activity_date DESC").
		Pluck("activity_date", &dates).Error
	return dates, err
}

// ListRecent 查询用户最近 N 天的活动行，按日期降序
func (r *ActivityRepository) ListRecent(ctx context.Context, userID int64, limit int) ([]*model.DailyActivity, error) {
	var activities []*model.DailyActivity
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("activity_date DESC").
		Limit(limit).
		Find(&activities).Error
	return activities, err
}
