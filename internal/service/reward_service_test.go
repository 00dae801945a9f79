package service

import (
	"errors"
	"testing"

	"lingocredit/internal/config"
	"lingocredit/internal/model"
)

func testRewardsConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return cfg
}

// 连续 7 天、从未发过奖：应补发 3 天和 7 天两个档位
func TestDueStreakTiers_FirstTime(t *testing.T) {
	cfg := testRewardsConfig()

	due := dueStreakTiers(cfg.Rewards.Streak, 7, map[int]bool{})
	if len(due) != 2 {
		t.Fatalf("期望 2 个档位，实际 %d", len(due))
	}
	if due[0].Days != 3 || due[0].Credits != 25 {
		t.Fatalf("第一档期望 3天/25分，实际 %d天/%d分", due[0].Days, due[0].Credits)
	}
	if due[1].Days != 7 || due[1].Credits != 50 {
		t.Fatalf("第二档期望 7天/50分，实际 %d天/%d分", due[1].Days, due[1].Credits)
	}
}

// 已发过的档位不再出现：幂等性的纯逻辑面
func TestDueStreakTiers_SkipsGranted(t *testing.T) {
	cfg := testRewardsConfig()

	due := dueStreakTiers(cfg.Rewards.Streak, 7, map[int]bool{3: true})
	if len(due) != 1 || due[0].Days != 7 {
		t.Fatalf("期望只剩 7 天档，实际 %+v", due)
	}

	// 全部发过之后再调一次，应为空
	due = dueStreakTiers(cfg.Rewards.Streak, 7, map[int]bool{3: true, 7: true})
	if len(due) != 0 {
		t.Fatalf("全部发过后期望空，实际 %+v", due)
	}
}

// 够不着的档位不发：连续 2 天时一个档位都没到
func TestDueStreakTiers_BelowFirstThreshold(t *testing.T) {
	cfg := testRewardsConfig()

	due := dueStreakTiers(cfg.Rewards.Streak, 2, map[int]bool{})
	if len(due) != 0 {
		t.Fatalf("2 天不应触发任何档位，实际 %+v", due)
	}
}

// 上次部分失败（3 天档发了、7 天档没发），重试只补缺口
func TestDueStreakTiers_ResumeAfterPartialFailure(t *testing.T) {
	cfg := testRewardsConfig()

	due := dueStreakTiers(cfg.Rewards.Streak, 15, map[int]bool{3: true})
	if len(due) != 2 {
		t.Fatalf("期望补发 7、15 两档，实际 %+v", due)
	}
	if due[0].Days != 7 || due[1].Days != 15 {
		t.Fatalf("期望 [7 15]，实际 [%d %d]", due[0].Days, due[1].Days)
	}
}

// 默认里程碑表每个类型都有定价，未知类型必须报错
func TestMilestoneReward_Table(t *testing.T) {
	svc := &RewardService{cfg: testRewardsConfig()}

	for _, milestoneType := range []string{
		model.MilestoneFirstConversation,
		model.MilestoneTenConversations,
		model.MilestoneFirstModuleSection,
		model.MilestoneModuleCompleted,
		model.MilestoneQuizPerfect,
	} {
		credits, err := svc.milestoneReward(milestoneType)
		if err != nil {
			t.Fatalf("类型 %s 查价失败: %v", milestoneType, err)
		}
		if credits <= 0 {
			t.Fatalf("类型 %s 奖励应为正数，实际 %d", milestoneType, credits)
		}
	}

	if _, err := svc.milestoneReward("TOTALLY_MADE_UP"); !errors.Is(err, ErrUnknownMilestone) {
		t.Fatalf("未知类型期望 ErrUnknownMilestone，实际 %v", err)
	}
}

// 配置里的定价覆盖默认表
func TestMilestoneReward_ConfigOverride(t *testing.T) {
	cfg := testRewardsConfig()
	cfg.Rewards.Milestone = map[string]int64{
		model.MilestoneFirstConversation: 999,
	}
	svc := &RewardService{cfg: cfg}

	credits, err := svc.milestoneReward(model.MilestoneFirstConversation)
	if err != nil {
		t.Fatalf("查价失败: %v", err)
	}
	if credits != 999 {
		t.Fatalf("期望配置值 999，实际 %d", credits)
	}
}
