package repository

import (
	"context"
	"errors"
	"time"

	"lingocredit/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MilestoneRepository struct {
	db *gorm.DB
}

func NewMilestoneRepository(db *gorm.DB) *MilestoneRepository {
	return &MilestoneRepository{db: db}
}

func (r *MilestoneRepository) GetByKey(ctx context.Context, userID int64, milestoneType, language string) (*model.Milestone, error) {
	var milestone model.Milestone
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND milestone_type = ? AND language = ?", userID, milestoneType, language).
		First(&milestone).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &milestone, nil
}

// MarkAchieved 条件达成里程碑，返回这一次是否真的达成
//
// 两步都是原子写：
//  1. 条件插入 achieved=true 的行（唯一键冲突则什么都不做）
//  2. 插入没生效时，再试条件更新 achieved = false -> true
//     （覆盖"行先建出来做进度跟踪、后来才达成"的情况）
//
// 两步都没更新到行，说明别人已经达成过，本次是无害的空操作
func (r *MilestoneRepository) MarkAchieved(ctx context.Context, tx *gorm.DB, userID int64, milestoneType, language string, credits int64, metadata string, achievedAt time.Time) (bool, error) {
	if tx == nil {
		tx = r.db
	}

	row := &model.Milestone{
		UserID:         userID,
		MilestoneType:  milestoneType,
		Language:       language,
		Achieved:       true,
		AchievedAt:     &achievedAt,
		CreditsAwarded: credits,
		Metadata:       metadata,
	}

	result := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "milestone_type"}, {Name: "language"}},
			DoNothing: true,
		}).
		Create(row)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	update := tx.WithContext(ctx).
		Model(&model.Milestone{}).
		Where("user_id = ? AND milestone_type = ? AND language = ? AND achieved = ?",
			userID, milestoneType, language, false).
		Updates(map[string]interface{}{
			"achieved":        true,
			"achieved_at":     &achievedAt,
			"credits_awarded": credits,
			"metadata":        metadata,
		})
	if update.Error != nil {
		return false, update.Error
	}
	return update.RowsAffected > 0, nil
}

func (r *MilestoneRepository) ListByUserID(ctx context.Context, userID int64) ([]*model.Milestone, error) {
	var milestones []*model.Milestone
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&milestones).Error
	return milestones, err
}

// ============================================================================
// 成就（徽章）
// ============================================================================

type AchievementRepository struct {
	db *gorm.DB
}

func NewAchievementRepository(db *gorm.DB) *AchievementRepository {
	return &AchievementRepository{db: db}
}

// InsertIfAbsent 条件解锁成就，已存在则静默跳过
func (r *AchievementRepository) InsertIfAbsent(ctx context.Context, tx *gorm.DB, achievement *model.Achievement) (bool, error) {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "achievement_type"}},
			DoNothing: true,
		}).
		Create(achievement)

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *AchievementRepository) ListByUserID(ctx context.Context, userID int64) ([]*model.Achievement, error) {
	var achievements []*model.Achievement
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("unlocked_at DESC").
		Find(&achievements).Error
	return achievements, err
}
