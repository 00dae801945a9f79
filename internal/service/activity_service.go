package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"lingocredit/internal/config"
	"lingocredit/internal/infrastructure/cache"
	"lingocredit/internal/infrastructure/lock"
	"lingocredit/internal/model"
	"lingocredit/internal/repository"
	"lingocredit/pkg/clock"
	"lingocredit/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// ============================================================================
// 活动记录服务
// ============================================================================
//
// 这是打卡链路的入口，一次调用串起整条因果链：
//
//   记当天活动 -> （可选）活动积分入账 -> 重算连续打卡 -> 补发打卡奖励
//
// 【关键点】整条链在同一个用户锁 + 同一个数据库事务里完成，
// 调用返回时看到的 streak 一定是本次活动之后的最新值；
// 中途任何一步失败，整条链回滚，不留半截状态。
// ============================================================================

type ActivityService struct {
	db           *gorm.DB
	redisClient  *redis.Client
	cfg          *config.Config
	activityRepo *repository.ActivityRepository
	creditSvc    *CreditService
	streakSvc    *StreakService
	rewardSvc    *RewardService
	clk          clock.Clock
}

func NewActivityService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config,
	creditSvc *CreditService, streakSvc *StreakService, rewardSvc *RewardService, clk clock.Clock) *ActivityService {
	return &ActivityService{
		db:           db,
		redisClient:  redisClient,
		cfg:          cfg,
		activityRepo: repository.NewActivityRepository(db),
		creditSvc:    creditSvc,
		streakSvc:    streakSvc,
		rewardSvc:    rewardSvc,
		clk:          clk,
	}
}

type RecordActivityResult struct {
	Activity             *model.DailyActivity `json:"activity"`
	Streak               *model.StreakState   `json:"streak"`
	StreakCreditsAwarded int64                `json:"streak_credits_awarded"` // 本次触发的打卡奖励总积分
}

// RecordActivity 记录一次学习活动
//
// at 为零值时取当前时刻；日期按配置时区归一化到日历日零点
func (s *ActivityService) RecordActivity(ctx context.Context, userID int64, delta model.ActivityDelta, at time.Time) (*RecordActivityResult, error) {
	if delta.CreditsEarned < 0 {
		return nil, fmt.Errorf("活动积分不能为负")
	}
	if delta.IsZero() {
		return nil, fmt.Errorf("活动增量不能全为零")
	}

	if at.IsZero() {
		at = s.clk.Now()
	}
	activityDate := s.clk.Day(at)

	// 用户维度锁：同一用户的打卡链路串行化，
	// 并发打卡不会同时重算 streak、不会竞争同一档位奖励
	userLock := lock.NewUserCreditLock(s.redisClient, userID, idgen.GenerateEntryNo())
	if err := userLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer userLock.Unlock(ctx)

	result := &RecordActivityResult{}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		// 原子累加当天聚合行
		if err := s.activityRepo.UpsertIncrement(ctx, tx, userID, activityDate, delta); err != nil {
			return fmt.Errorf("记录活动失败: %w", err)
		}

		// 活动本身带的积分走账本入账，和活动行同事务
		if delta.CreditsEarned > 0 {
			if _, err := s.creditSvc.ApplyInTx(ctx, tx, userID, delta.CreditsEarned,
				model.LedgerKindReward, "学习活动奖励", ""); err != nil {
				return fmt.Errorf("活动积分入账失败: %w", err)
			}
		}

		// 同步重算打卡：调用方返回后立即能读到新 streak
		state, err := s.streakSvc.RecomputeInTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		result.Streak = state

		// 补发新跨过的档位奖励
		credits, err := s.rewardSvc.CheckStreakRewardsInTx(ctx, tx, userID, state.CurrentStreak)
		if err != nil {
			return err
		}
		result.StreakCreditsAwarded = credits

		activity, err := s.activityRepo.GetByUserAndDate(ctx, tx, userID, activityDate)
		if err != nil {
			return fmt.Errorf("查询活动行失败: %w", err)
		}
		result.Activity = activity

		return nil
	})

	if err != nil {
		return nil, err
	}

	if delta.CreditsEarned > 0 || result.StreakCreditsAwarded > 0 {
		cache.InvalidateBalance(ctx, s.redisClient, userID)
	}

	return result, nil
}

// RecordConversation 记录一次完成的对话会话
//
// 对话由外部语音厂商托管，这里只消费结果：时长 + "发生过一次对话"。
// 顺手探测首次对话里程碑（独立事务，幂等，失败不影响打卡结果）
func (s *ActivityService) RecordConversation(ctx context.Context, userID int64, durationSeconds int, language string, creditsEarned int64) (*RecordActivityResult, *MilestoneResult, error) {
	result, err := s.RecordActivity(ctx, userID, model.ActivityDelta{
		Conversations:    1,
		TimeSpentSeconds: durationSeconds,
		CreditsEarned:    creditsEarned,
	}, time.Time{})
	if err != nil {
		return nil, nil, err
	}

	milestone, err := s.rewardSvc.CheckMilestone(ctx, userID, model.MilestoneFirstConversation, language, "")
	if err != nil {
		// 里程碑失败不回滚已落账的活动，记日志后返回活动结果
		log.Printf("[Activity] 里程碑探测失败: userID=%d, err=%v", userID, err)
		return result, nil, nil
	}

	return result, milestone, nil
}

// RecordModuleProgress 记录课程模块小节完成
func (s *ActivityService) RecordModuleProgress(ctx context.Context, userID int64, sections int, timeSpentSeconds int, language string, moduleCompleted bool, creditsEarned int64) (*RecordActivityResult, *MilestoneResult, error) {
	if sections <= 0 {
		return nil, nil, fmt.Errorf("小节数必须大于 0")
	}

	result, err := s.RecordActivity(ctx, userID, model.ActivityDelta{
		ModuleProgress:   sections,
		TimeSpentSeconds: timeSpentSeconds,
		CreditsEarned:    creditsEarned,
	}, time.Time{})
	if err != nil {
		return nil, nil, err
	}

	milestoneType := model.MilestoneFirstModuleSection
	if moduleCompleted {
		milestoneType = model.MilestoneModuleCompleted
	}
	milestone, err := s.rewardSvc.CheckMilestone(ctx, userID, milestoneType, language, "")
	if err != nil {
		log.Printf("[Activity] 里程碑探测失败: userID=%d, err=%v", userID, err)
		return result, nil, nil
	}

	return result, milestone, nil
}

// ListRecent 查询最近的活动历史
func (s *ActivityService) ListRecent(ctx context.Context, userID int64, limit int) ([]*model.DailyActivity, error) {
	return s.activityRepo.ListRecent(ctx, userID, limit)
}
