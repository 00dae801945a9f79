package repository

import (
	"context"
	"testing"

	"lingocredit/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
)

// 条件插入是发奖幂等性的落点：插入成功返回 true，唯一键冲突返回 false
func TestInsertRewardIfAbsent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStreakRepository(db)

	reward := &model.StreakReward{
		UserID:         7,
		StreakDays:     3,
		CreditsAwarded: 25,
		EntryNo:        "LED1",
	}

	// 首次插入：真插入了一行
	mock.ExpectExec("INSERT INTO `streak_reward`").
		WillReturnResult(sqlmock.NewResult(1, 1))

	inserted, err := repo.InsertRewardIfAbsent(context.Background(), nil, reward)
	if err != nil {
		t.Fatalf("首次插入失败: %v", err)
	}
	if !inserted {
		t.Fatal("首次插入期望 inserted=true")
	}

	// 重复插入：唯一键冲突被吞掉，RowsAffected 为 0
	mock.ExpectExec("INSERT INTO `streak_reward`").
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err = repo.InsertRewardIfAbsent(context.Background(), nil, reward)
	if err != nil {
		t.Fatalf("重复插入不应报错: %v", err)
	}
	if inserted {
		t.Fatal("重复插入期望 inserted=false")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("SQL 期望未满足: %v", err)
	}
}
