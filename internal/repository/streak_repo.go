package repository

import (
	"context"
	"errors"
	"time"

	"lingocredit/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StreakRepository struct {
	db *gorm.DB
}

func NewStreakRepository(db *gorm.DB) *StreakRepository {
	return &StreakRepository{db: db}
}

func (r *StreakRepository) GetState(ctx context.Context, userID int64) (*model.StreakState, error) {
	var state model.StreakState
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 从未打过卡的用户返回零值状态，不算错误
			return &model.StreakState{UserID: userID}, nil
		}
		return nil, err
	}
	return &state, nil
}

// UpsertState 写入重算结果（streak_state 是派生数据，整行覆盖）
func (r *StreakRepository) UpsertState(ctx context.Context, tx *gorm.DB, userID int64, currentStreak, longestStreak int, lastActivityDate *time.Time) error {
	if tx == nil {
		tx = r.db
	}

	state := &model.StreakState{
		UserID:           userID,
		CurrentStreak:    currentStreak,
		LongestStreak:    longestStreak,
		LastActivityDate: lastActivityDate,
	}

	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"current_streak":     currentStreak,
				"longest_streak":     longestStreak,
				"last_activity_date": lastActivityDate,
			}),
		}).
		Create(state).Error
}

// InsertRewardIfAbsent 条件插入打卡奖励记录
//
// 【关键点】这是发奖幂等性的落点：唯一键 (user_id, streak_days) 上
// ON CONFLICT DO NOTHING，返回值告诉调用方这一次是不是真的插入了。
// 只有插入成功的那一次才允许去记账，输掉竞争的调用静默跳过
func (r *StreakRepository) InsertRewardIfAbsent(ctx context.Context, tx *gorm.DB, reward *model.StreakReward) (bool, error) {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "streak_days"}},
			DoNothing: true,
		}).
		Create(reward)

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GrantedDays 该用户已发放过的打卡档位集合
func (r *StreakRepository) GrantedDays(ctx context.Context, tx *gorm.DB, userID int64) (map[int]bool, error) {
	if tx == nil {
		tx = r.db
	}
	var days []int
	err := tx.WithContext(ctx).
		Model(&model.StreakReward{}).
		Where("user_id = ?", userID).
		Pluck("streak_days", &days).Error
	if err != nil {
		return nil, err
	}
	granted := make(map[int]bool, len(days))
	for _, d := range days {
		granted[d] = true
	}
	return granted, nil
}

func (r *StreakRepository) ListRewards(ctx context.Context, userID int64) ([]*model.StreakReward, error) {
	var rewards []*model.StreakReward
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("streak_days ASC").
		Find(&rewards).Error
	return rewards, err
}
