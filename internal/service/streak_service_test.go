package service

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// 连续三天打卡，今天是第三天
func TestComputeStreaks_BuildUp(t *testing.T) {
	today := day(2025, 3, 10)
	dates := []time.Time{
		day(2025, 3, 10),
		day(2025, 3, 9),
		day(2025, 3, 8),
	}

	current, longest := computeStreaks(dates, today)
	if current != 3 {
		t.Fatalf("current 期望 3，实际 %d", current)
	}
	if longest != 3 {
		t.Fatalf("longest 期望 3，实际 %d", longest)
	}
}

func TestComputeStreaks_EmptyHistory(t *testing.T) {
	current, longest := computeStreaks(nil, day(2025, 3, 10))
	if current != 0 || longest != 0 {
		t.Fatalf("空历史期望 (0,0)，实际 (%d,%d)", current, longest)
	}
}

// 昨天打过卡、今天还没打：一天宽限内，streak 不断
func TestComputeStreaks_GraceDay(t *testing.T) {
	today := day(2025, 3, 10)
	dates := []time.Time{
		day(2025, 3, 9),
		day(2025, 3, 8),
	}

	current, longest := computeStreaks(dates, today)
	if current != 2 {
		t.Fatalf("宽限期内 current 期望 2，实际 %d", current)
	}
	if longest != 2 {
		t.Fatalf("longest 期望 2，实际 %d", longest)
	}
}

// 最近活动距今超过一天：streak 已断
func TestComputeStreaks_BrokenAfterGap(t *testing.T) {
	today := day(2025, 3, 10)
	dates := []time.Time{
		day(2025, 3, 7),
		day(2025, 3, 6),
		day(2025, 3, 5),
	}

	current, longest := computeStreaks(dates, today)
	if current != 0 {
		t.Fatalf("断签后 current 期望 0，实际 %d", current)
	}
	if longest != 3 {
		t.Fatalf("历史最长段应保留为 3，实际 %d", longest)
	}
}

// D、D+1 打卡，D+2 缺勤，D+5 恢复：current 应为 1 而不是 3
func TestComputeStreaks_ResumeAfterGap(t *testing.T) {
	base := day(2025, 3, 1)
	today := base.AddDate(0, 0, 5)
	dates := []time.Time{
		base.AddDate(0, 0, 5), // 恢复日
		base.AddDate(0, 0, 1),
		base,
	}

	current, longest := computeStreaks(dates, today)
	if current != 1 {
		t.Fatalf("恢复后 current 期望 1，实际 %d", current)
	}
	if longest != 2 {
		t.Fatalf("longest 期望 2，实际 %d", longest)
	}
}

// 最长段在历史中间、早已结束，仍应被记住
func TestComputeStreaks_LongestInMiddle(t *testing.T) {
	today := day(2025, 6, 2)
	dates := []time.Time{
		day(2025, 6, 2),
		day(2025, 6, 1),
		// 中断
		day(2025, 4, 14),
		day(2025, 4, 13),
		day(2025, 4, 12),
		day(2025, 4, 11),
		day(2025, 4, 10),
	}

	current, longest := computeStreaks(dates, today)
	if current != 2 {
		t.Fatalf("current 期望 2，实际 %d", current)
	}
	if longest != 5 {
		t.Fatalf("longest 期望 5，实际 %d", longest)
	}
	if longest < current {
		t.Fatalf("不变式被破坏: longest(%d) < current(%d)", longest, current)
	}
}

// 同一天出现多条记录不应重复计数
func TestComputeStreaks_DuplicateDays(t *testing.T) {
	today := day(2025, 3, 10)
	dates := []time.Time{
		day(2025, 3, 10),
		day(2025, 3, 10),
		day(2025, 3, 9),
	}

	current, longest := computeStreaks(dates, today)
	if current != 2 || longest != 2 {
		t.Fatalf("去重后期望 (2,2)，实际 (%d,%d)", current, longest)
	}
}

// 带时分秒的时间戳要先归一化到日历日
func TestComputeStreaks_NormalizesTimestamps(t *testing.T) {
	today := day(2025, 3, 10)
	dates := []time.Time{
		time.Date(2025, 3, 10, 23, 59, 0, 0, time.UTC),
		time.Date(2025, 3, 9, 0, 1, 0, 0, time.UTC),
	}

	current, _ := computeStreaks(dates, today)
	if current != 2 {
		t.Fatalf("current 期望 2，实际 %d", current)
	}
}

// 固定历史 + 固定今天，重算必须幂等
func TestComputeStreaks_Deterministic(t *testing.T) {
	today := day(2025, 3, 10)
	dates := []time.Time{
		day(2025, 3, 10),
		day(2025, 3, 9),
		day(2025, 3, 5),
		day(2025, 3, 4),
		day(2025, 3, 3),
	}

	c1, l1 := computeStreaks(dates, today)
	c2, l2 := computeStreaks(dates, today)
	if c1 != c2 || l1 != l2 {
		t.Fatalf("重算结果不一致: (%d,%d) vs (%d,%d)", c1, l1, c2, l2)
	}
	if c1 != 2 || l1 != 3 {
		t.Fatalf("期望 (2,3)，实际 (%d,%d)", c1, l1)
	}
}
