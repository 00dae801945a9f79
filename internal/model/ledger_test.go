package model

import "testing"

// 流水状态机：PENDING 只能单向流转一次，终态不允许再动
func TestCanLedgerTransitionTo(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{LedgerStatusPending, LedgerStatusCompleted, true},
		{LedgerStatusPending, LedgerStatusCancelled, true},
		{LedgerStatusCompleted, LedgerStatusCancelled, false},
		{LedgerStatusCompleted, LedgerStatusPending, false},
		{LedgerStatusCompleted, LedgerStatusCompleted, false},
		{LedgerStatusCancelled, LedgerStatusCompleted, false},
		{LedgerStatusCancelled, LedgerStatusPending, false},
		{"UNKNOWN", LedgerStatusCompleted, false},
		{LedgerStatusPending, "UNKNOWN", false},
	}

	for _, c := range cases {
		if got := CanLedgerTransitionTo(c.from, c.to); got != c.want {
			t.Errorf("%s -> %s: 期望 %v，实际 %v", c.from, c.to, c.want, got)
		}
	}
}
