package service

import (
	"context"
	"fmt"
	"time"

	"lingocredit/internal/model"
	"lingocredit/internal/repository"
	"lingocredit/pkg/clock"

	"gorm.io/gorm"
)

// ============================================================================
// 连续打卡计算
// ============================================================================
//
// streak_state 是纯派生数据：每次都从 daily_activity 历史整体重算，
// 不做增量维护。对固定的历史和固定的"今天"，重算是确定且幂等的——
// 连算两次结果完全一致。
//
// 【口径】断签判定带一天宽限：最近活动日距今天超过 1 天才算断，
// 也就是说今天还没打卡不扣，昨天打过卡 current_streak 仍然在。
// 这是沿用产品既有口径的策略选择，不是实现细节。
// ============================================================================

type StreakService struct {
	db           *gorm.DB
	activityRepo *repository.ActivityRepository
	streakRepo   *repository.StreakRepository
	clk          clock.Clock
}

func NewStreakService(db *gorm.DB, clk clock.Clock) *StreakService {
	return &StreakService{
		db:           db,
		activityRepo: repository.NewActivityRepository(db),
		streakRepo:   repository.NewStreakRepository(db),
		clk:          clk,
	}
}

func (s *StreakService) GetState(ctx context.Context, userID int64) (*model.StreakState, error) {
	return s.streakRepo.GetState(ctx, userID)
}

// RecomputeInTx 在调用方事务里重算并持久化打卡状态
func (s *StreakService) RecomputeInTx(ctx context.Context, tx *gorm.DB, userID int64) (*model.StreakState, error) {
	dates, err := s.activityRepo.ListActiveDates(ctx, tx, userID)
	if err != nil {
		return nil, fmt.Errorf("查询活动历史失败: %w", err)
	}

	today := s.clk.Today()
	current, longest := computeStreaks(dates, today)

	// 不变式 longest >= current 在这里收口
	if current > longest {
		longest = current
	}

	var lastActivity *time.Time
	if len(dates) > 0 {
		d := clock.DayOf(dates[0])
		lastActivity = &d
	}

	if err := s.streakRepo.UpsertState(ctx, tx, userID, current, longest, lastActivity); err != nil {
		return nil, fmt.Errorf("写入打卡状态失败: %w", err)
	}

	return &model.StreakState{
		UserID:           userID,
		CurrentStreak:    current,
		LongestStreak:    longest,
		LastActivityDate: lastActivity,
	}, nil
}

// Recompute 独立事务重算（查询接口或修数时使用）
func (s *StreakService) Recompute(ctx context.Context, userID int64) (*model.StreakState, error) {
	var state *model.StreakState
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		state, err = s.RecomputeInTx(ctx, tx, userID)
		return err
	})
	return state, err
}

// computeStreaks 从降序活动日列表计算当前/最长连续天数
//
// datesDesc 必须按日期降序；同一天的重复项会被跳过。
// current：从最近活动日往回数连续日，最近活动日距 today 超过 1 天则为 0；
// longest：全历史里最长的连续日段，与该段是否仍在延续无关
func computeStreaks(datesDesc []time.Time, today time.Time) (current, longest int) {
	if len(datesDesc) == 0 {
		return 0, 0
	}

	days := make([]time.Time, 0, len(datesDesc))
	for _, d := range datesDesc {
		day := clock.DayOf(d)
		if len(days) > 0 && days[len(days)-1].Equal(day) {
			continue
		}
		days = append(days, day)
	}

	// 最长连续段：单遍扫描，数极大连续日段
	run := 1
	longest = 1
	for i := 1; i < len(days); i++ {
		if clock.DaysBetween(days[i], days[i-1]) == 1 {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	// 当前连续段：一天宽限，超过即断
	latest := days[0]
	if clock.DaysBetween(latest, clock.DayOf(today)) > 1 {
		return 0, longest
	}

	current = 1
	for i := 1; i < len(days); i++ {
		if clock.DaysBetween(days[i], days[i-1]) != 1 {
			break
		}
		current++
	}

	return current, longest
}
