package clock

import (
	"log"
	"math"
	"time"

	"github.com/jinzhu/now"
)

// ============================================================================
// 时钟抽象
// ============================================================================
//
// 【为什么要抽象时钟？】
//
// 连续打卡的核心输入是"今天是哪个日历日"，而日历日取决于时区零点。
// 直接到处调 time.Now() 有两个问题：
//   1. 各处各自换算日界线，时区策略容易不一致
//   2. 打卡、断签的测试没法固定"今天"，结果不可复现
//
// 所以统一走 Clock 接口：生产用系统时钟 + 配置时区，测试注入固定时钟。
// ============================================================================

// Clock 时钟接口
type Clock interface {
	// Now 当前时刻
	Now() time.Time
	// Today 当前日历日（配置时区的零点）
	Today() time.Time
	// Day 把任意时刻归一化到配置时区的日历日零点
	Day(t time.Time) time.Time
}

// SystemClock 系统时钟，按配置的时区换算日界线
type SystemClock struct {
	loc *time.Location
}

// NewSystemClock 创建系统时钟，时区名不合法直接启动失败
func NewSystemClock(timezone string) *SystemClock {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		log.Fatalf("加载时区失败: %s, err=%v", timezone, err)
	}
	return &SystemClock{loc: loc}
}

func (c *SystemClock) Now() time.Time {
	return time.Now().In(c.loc)
}

func (c *SystemClock) Today() time.Time {
	return DayOf(c.Now())
}

func (c *SystemClock) Day(t time.Time) time.Time {
	return DayOf(t.In(c.loc))
}

// DayOf 把任意时刻归一化到所在日历日的零点（保留原时区）
func DayOf(t time.Time) time.Time {
	return now.New(t).BeginningOfDay()
}

// DaysBetween 两个日历日之间相差的天数（a、b 都应是零点时刻）
// b 在 a 之后为正。四舍五入吸收夏令时造成的 23/25 小时日
func DaysBetween(a, b time.Time) int {
	return int(math.Round(b.Sub(a).Hours() / 24))
}

// FixedClock 固定时钟，测试用
type FixedClock struct {
	T time.Time
}

func (c *FixedClock) Now() time.Time            { return c.T }
func (c *FixedClock) Today() time.Time          { return DayOf(c.T) }
func (c *FixedClock) Day(t time.Time) time.Time { return DayOf(t.In(c.T.Location())) }
