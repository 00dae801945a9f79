package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"lingocredit/internal/config"
	"lingocredit/internal/infrastructure/cache"
	"lingocredit/internal/model"
	"lingocredit/internal/repository"
	"lingocredit/pkg/clock"
	"lingocredit/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// ============================================================================
// 奖励引擎：打卡奖励 / 里程碑 / 成就
// ============================================================================
//
// 三类奖励共用同一套幂等骨架：
//
//   条件插入标记行（唯一键冲突即跳过）-> 只有插入成功才记账
//
// 标记行和积分流水在同一个事务里提交，崩溃不会留下
// "发了积分没记标记"或"记了标记没发积分"的中间态。
// 重复调用、并发调用、失败后重试都只会产生一次发放。
// ============================================================================

type RewardService struct {
	db              *gorm.DB
	redisClient     *redis.Client
	cfg             *config.Config
	creditSvc       *CreditService
	streakRepo      *repository.StreakRepository
	milestoneRepo   *repository.MilestoneRepository
	achievementRepo *repository.AchievementRepository
	outboxRepo      *repository.OutboxRepository
	clk             clock.Clock
}

func NewRewardService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, creditSvc *CreditService, clk clock.Clock) *RewardService {
	return &RewardService{
		db:              db,
		redisClient:     redisClient,
		cfg:             cfg,
		creditSvc:       creditSvc,
		streakRepo:      repository.NewStreakRepository(db),
		milestoneRepo:   repository.NewMilestoneRepository(db),
		achievementRepo: repository.NewAchievementRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
		clk:             clk,
	}
}

// milestoneReward 查里程碑奖励金额，配置优先、代码默认表兜底，
// 未知类型直接报错，不做字符串兜底
func (s *RewardService) milestoneReward(milestoneType string) (int64, error) {
	if credits, ok := s.cfg.Rewards.Milestone[milestoneType]; ok {
		return credits, nil
	}
	if credits, ok := model.DefaultMilestoneRewards[milestoneType]; ok {
		return credits, nil
	}
	return 0, ErrUnknownMilestone
}

// dueStreakTiers 算出本次应发的档位：门槛不超过 currentStreak 且尚未发放过
func dueStreakTiers(table []config.StreakRewardTier, currentStreak int, granted map[int]bool) []config.StreakRewardTier {
	var due []config.StreakRewardTier
	for _, tier := range table {
		if tier.Days > currentStreak {
			break // 表是升序的，后面都够不着
		}
		if granted[tier.Days] {
			continue
		}
		due = append(due, tier)
	}
	return due
}

// CheckStreakRewardsInTx 按当前连续天数补发所有未发放的档位奖励
//
// 每次打卡都会调用，必须可以反复执行：已发过的档位靠唯一键跳过，
// 上次部分失败漏掉的档位这次补上。返回本次实际发放的总积分
func (s *RewardService) CheckStreakRewardsInTx(ctx context.Context, tx *gorm.DB, userID int64, currentStreak int) (int64, error) {
	if currentStreak <= 0 {
		return 0, nil
	}

	granted, err := s.streakRepo.GrantedDays(ctx, tx, userID)
	if err != nil {
		return 0, fmt.Errorf("查询已发放档位失败: %w", err)
	}

	var totalCredits int64
	for _, tier := range dueStreakTiers(s.cfg.Rewards.Streak, currentStreak, granted) {
		entryNo := idgen.GenerateEntryNo()
		inserted, err := s.streakRepo.InsertRewardIfAbsent(ctx, tx, &model.StreakReward{
			UserID:         userID,
			StreakDays:     tier.Days,
			CreditsAwarded: tier.Credits,
			EntryNo:        entryNo,
		})
		if err != nil {
			return totalCredits, fmt.Errorf("写入奖励记录失败: %w", err)
		}
		if !inserted {
			// 并发调用抢先发过了，无害跳过
			continue
		}

		if _, err := s.creditSvc.ApplyInTx(ctx, tx, userID, tier.Credits, model.LedgerKindReward,
			fmt.Sprintf("连续学习%d天奖励", tier.Days), entryNo); err != nil {
			return totalCredits, fmt.Errorf("发放打卡奖励失败: %w", err)
		}
		totalCredits += tier.Credits

		// 大档位同步解锁徽章；积分已由打卡奖励发过，徽章不再给
		if tier.Days >= model.StreakBadgeMinDays {
			if _, err := s.achievementRepo.InsertIfAbsent(ctx, tx, &model.Achievement{
				UserID:          userID,
				AchievementType: fmt.Sprintf("STREAK_%d_DAYS", tier.Days),
				Title:           fmt.Sprintf("连续学习%d天", tier.Days),
				CreditsAwarded:  0,
			}); err != nil {
				return totalCredits, fmt.Errorf("解锁打卡徽章失败: %w", err)
			}
		}

		if err := s.enqueueRewardEvent(ctx, tx, userID, "streak", map[string]interface{}{
			"streak_days": tier.Days,
			"credits":     tier.Credits,
			"entry_no":    entryNo,
		}); err != nil {
			return totalCredits, err
		}

		log.Printf("打卡奖励发放: userID=%d, days=%d, credits=%d", userID, tier.Days, tier.Credits)
	}

	return totalCredits, nil
}

type MilestoneResult struct {
	Awarded        bool  `json:"awarded"`
	CreditsAwarded int64 `json:"credits_awarded"`
}

// CheckMilestone 达成里程碑
//
// 已达成返回 {awarded:false}（幂等空操作，不算错误）；
// 未知类型返回 ErrUnknownMilestone；
// 首次达成在一个事务里写标记行 + 记账 + 事务消息
func (s *RewardService) CheckMilestone(ctx context.Context, userID int64, milestoneType, language, metadata string) (*MilestoneResult, error) {
	credits, err := s.milestoneReward(milestoneType)
	if err != nil {
		return nil, err
	}

	// 快路径：已达成直接返回，省一次事务
	existing, err := s.milestoneRepo.GetByKey(ctx, userID, milestoneType, language)
	if err != nil {
		return nil, fmt.Errorf("查询里程碑失败: %w", err)
	}
	if existing != nil && existing.Achieved {
		return &MilestoneResult{Awarded: false}, nil
	}

	var awarded bool
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		awarded, err = s.milestoneRepo.MarkAchieved(ctx, tx, userID, milestoneType, language, credits, metadata, s.clk.Now())
		if err != nil {
			return fmt.Errorf("写入里程碑失败: %w", err)
		}
		if !awarded {
			return nil
		}

		if credits > 0 {
			if _, err := s.creditSvc.ApplyInTx(ctx, tx, userID, credits, model.LedgerKindReward,
				fmt.Sprintf("里程碑奖励-%s", milestoneType), ""); err != nil {
				return fmt.Errorf("发放里程碑奖励失败: %w", err)
			}
		}

		return s.enqueueRewardEvent(ctx, tx, userID, "milestone", map[string]interface{}{
			"milestone_type": milestoneType,
			"language":       language,
			"credits":        credits,
		})
	})
	if err != nil {
		return nil, err
	}

	if !awarded {
		return &MilestoneResult{Awarded: false}, nil
	}

	cache.InvalidateBalance(ctx, s.redisClient, userID)
	log.Printf("里程碑达成: userID=%d, type=%s, language=%s, credits=%d", userID, milestoneType, language, credits)

	return &MilestoneResult{Awarded: true, CreditsAwarded: credits}, nil
}

// UnlockAchievement 解锁成就徽章，可选附带积分；重复解锁是无害空操作
func (s *RewardService) UnlockAchievement(ctx context.Context, userID int64, achievementType, title string, credits int64) (bool, error) {
	var unlocked bool
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		unlocked, err = s.achievementRepo.InsertIfAbsent(ctx, tx, &model.Achievement{
			UserID:          userID,
			AchievementType: achievementType,
			Title:           title,
			CreditsAwarded:  credits,
		})
		if err != nil {
			return fmt.Errorf("解锁成就失败: %w", err)
		}
		if !unlocked || credits <= 0 {
			return nil
		}

		if _, err := s.creditSvc.ApplyInTx(ctx, tx, userID, credits, model.LedgerKindReward,
			fmt.Sprintf("成就奖励-%s", achievementType), ""); err != nil {
			return fmt.Errorf("发放成就奖励失败: %w", err)
		}
		return s.enqueueRewardEvent(ctx, tx, userID, "achievement", map[string]interface{}{
			"achievement_type": achievementType,
			"credits":          credits,
		})
	})
	if err != nil {
		return false, err
	}

	if unlocked && credits > 0 {
		cache.InvalidateBalance(ctx, s.redisClient, userID)
	}
	return unlocked, nil
}

func (s *RewardService) ListMilestones(ctx context.Context, userID int64) ([]*model.Milestone, error) {
	return s.milestoneRepo.ListByUserID(ctx, userID)
}

func (s *RewardService) ListAchievements(ctx context.Context, userID int64) ([]*model.Achievement, error) {
	return s.achievementRepo.ListByUserID(ctx, userID)
}

func (s *RewardService) ListStreakRewards(ctx context.Context, userID int64) ([]*model.StreakReward, error) {
	return s.streakRepo.ListRewards(ctx, userID)
}

func (s *RewardService) enqueueRewardEvent(ctx context.Context, tx *gorm.DB, userID int64, rewardKind string, payload map[string]interface{}) error {
	payload["user_id"] = userID
	payload["reward_kind"] = rewardKind
	payload["granted_at"] = time.Now().Format(time.RFC3339)
	payloadBytes, _ := json.Marshal(payload)

	msg := &model.OutboxMessage{
		MessageKey: fmt.Sprintf("%d:%s", userID, rewardKind),
		Topic:      s.cfg.Kafka.Topic.RewardGranted,
		Payload:    string(payloadBytes),
		Status:     model.OutboxStatusPending,
	}
	if err := s.outboxRepo.Create(ctx, tx, msg); err != nil {
		return fmt.Errorf("写入消息失败: %w", err)
	}
	return nil
}
