package clock

import (
	"testing"
	"time"
)

func TestDayOf(t *testing.T) {
	in := time.Date(2025, 3, 10, 23, 59, 58, 0, time.UTC)
	got := DayOf(in)
	want := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("期望 %v，实际 %v", want, got)
	}
}

func TestDaysBetween(t *testing.T) {
	d := func(day int) time.Time {
		return time.Date(2025, 3, day, 0, 0, 0, 0, time.UTC)
	}

	if got := DaysBetween(d(10), d(10)); got != 0 {
		t.Fatalf("同一天期望 0，实际 %d", got)
	}
	if got := DaysBetween(d(9), d(10)); got != 1 {
		t.Fatalf("相邻两天期望 1，实际 %d", got)
	}
	if got := DaysBetween(d(5), d(10)); got != 5 {
		t.Fatalf("期望 5，实际 %d", got)
	}
	if got := DaysBetween(d(10), d(9)); got != -1 {
		t.Fatalf("反向期望 -1，实际 %d", got)
	}
}

// 夏令时切换日只有 23 小时，四舍五入后仍应算作 1 天
func TestDaysBetween_ShortDay(t *testing.T) {
	a := time.Date(2025, 3, 9, 0, 0, 0, 0, time.FixedZone("STD", -5*3600))
	b := time.Date(2025, 3, 10, 0, 0, 0, 0, time.FixedZone("DST", -4*3600))
	if got := DaysBetween(a, b); got != 1 {
		t.Fatalf("23 小时日期望按 1 天计，实际 %d", got)
	}
}

func TestFixedClock(t *testing.T) {
	at := time.Date(2025, 3, 10, 15, 30, 0, 0, time.UTC)
	clk := &FixedClock{T: at}

	if !clk.Now().Equal(at) {
		t.Fatalf("Now 期望 %v，实际 %v", at, clk.Now())
	}
	wantToday := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	if !clk.Today().Equal(wantToday) {
		t.Fatalf("Today 期望 %v，实际 %v", wantToday, clk.Today())
	}
	if !clk.Day(at).Equal(wantToday) {
		t.Fatalf("Day 期望 %v，实际 %v", wantToday, clk.Day(at))
	}
}
