package config

import "testing"

// 空配置应被填上全部缺省值，奖励表用默认表
func TestApplyDefaults_Empty(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Business.Timezone != "UTC" {
		t.Fatalf("默认时区期望 UTC，实际 %s", cfg.Business.Timezone)
	}
	if cfg.Business.PurchaseTimeoutMinutes != 30 {
		t.Fatalf("默认购买超时期望 30 分钟，实际 %d", cfg.Business.PurchaseTimeoutMinutes)
	}
	if len(cfg.Rewards.Streak) != len(DefaultStreakRewards) {
		t.Fatalf("默认奖励表档位数期望 %d，实际 %d", len(DefaultStreakRewards), len(cfg.Rewards.Streak))
	}
	if cfg.Rewards.Streak[0].Days != 3 || cfg.Rewards.Streak[0].Credits != 25 {
		t.Fatalf("第一档期望 3天/25分，实际 %+v", cfg.Rewards.Streak[0])
	}
}

// 配置文件里乱序的奖励表要被排成升序（发奖遍历依赖升序提前 break）
func TestApplyDefaults_SortsStreakTable(t *testing.T) {
	cfg := &Config{}
	cfg.Rewards.Streak = []StreakRewardTier{
		{Days: 30, Credits: 200},
		{Days: 3, Credits: 25},
		{Days: 7, Credits: 50},
	}
	ApplyDefaults(cfg)

	for i := 1; i < len(cfg.Rewards.Streak); i++ {
		if cfg.Rewards.Streak[i].Days <= cfg.Rewards.Streak[i-1].Days {
			t.Fatalf("奖励表未升序: %+v", cfg.Rewards.Streak)
		}
	}
	if cfg.Rewards.Streak[0].Days != 3 {
		t.Fatalf("排序后第一档期望 3 天，实际 %d", cfg.Rewards.Streak[0].Days)
	}
}

// 已有配置值不应被缺省值覆盖
func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Business.Timezone = "Asia/Shanghai"
	cfg.Business.BalanceCacheSeconds = 10
	ApplyDefaults(cfg)

	if cfg.Business.Timezone != "Asia/Shanghai" {
		t.Fatalf("显式时区被覆盖: %s", cfg.Business.Timezone)
	}
	if cfg.Business.BalanceCacheSeconds != 10 {
		t.Fatalf("显式缓存 TTL 被覆盖: %d", cfg.Business.BalanceCacheSeconds)
	}
}
