package service

import (
	"context"
	"errors"
	"testing"

	"lingocredit/internal/config"
	"lingocredit/internal/model"
	"lingocredit/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redis/v8"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newMockDB 建一个挂在 sqlmock 上的 gorm 连接
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("创建 sqlmock 失败: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		// 关掉 gorm 的默认事务包装，显式事务仍会产生 Begin/Commit
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("打开 gorm 失败: %v", err)
	}
	return db, mock
}

// newTestCreditService Redis 指向不可达地址：缓存操作失败只打日志，不影响正确性
func newTestCreditService(db *gorm.DB) *CreditService {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	return NewCreditService(db, rdb, cfg)
}

func accountRows(id, userID, balance int64, version int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "balance", "version"}).
		AddRow(id, userID, balance, version)
}

// 余额不足：整个事务回滚，不落流水
func TestApplyLedgerChange_InsufficientCredits(t *testing.T) {
	db, mock := newMockDB(t)
	svc := newTestCreditService(db)

	mock.ExpectBegin()
	// 读账户：余额 5
	mock.ExpectQuery("SELECT (.+) FROM `account`").
		WillReturnRows(accountRows(1, 7, 5, 0))
	// 条件扣减 balance >= 10 不满足，没更新到行
	mock.ExpectExec("UPDATE `account` SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	// 复查区分"余额不足"和"版本冲突"
	mock.ExpectQuery("SELECT (.+) FROM `account`").
		WillReturnRows(accountRows(1, 7, 5, 0))
	mock.ExpectRollback()

	_, err := svc.ApplyLedgerChange(context.Background(), 7, -10, model.LedgerKindUsage, "对话会话")
	if !errors.Is(err, repository.ErrInsufficientCredits) {
		t.Fatalf("期望 ErrInsufficientCredits，实际 %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("SQL 期望未满足（余额不足不应有 INSERT）: %v", err)
	}
}

// 版本号被并发改过：扣减失败但余额够，归类为可重试的并发冲突
func TestApplyLedgerChange_StorageConflict(t *testing.T) {
	db, mock := newMockDB(t)
	svc := newTestCreditService(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM `account`").
		WillReturnRows(accountRows(1, 7, 100, 3))
	mock.ExpectExec("UPDATE `account` SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	// 复查：余额其实够，说明输掉的是乐观锁
	mock.ExpectQuery("SELECT (.+) FROM `account`").
		WillReturnRows(accountRows(1, 7, 100, 4))
	mock.ExpectRollback()

	_, err := svc.ApplyLedgerChange(context.Background(), 7, -10, model.LedgerKindUsage, "对话会话")
	if !errors.Is(err, repository.ErrStorageConflict) {
		t.Fatalf("期望 ErrStorageConflict，实际 %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("SQL 期望未满足: %v", err)
	}
}

// 成功出账：一次条件 UPDATE + 一条 COMPLETED 流水，同事务提交
func TestApplyLedgerChange_DebitSuccess(t *testing.T) {
	db, mock := newMockDB(t)
	svc := newTestCreditService(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM `account`").
		WillReturnRows(accountRows(1, 7, 100, 2))
	mock.ExpectExec("UPDATE `account` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `ledger_entry`").
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectCommit()

	entry, err := svc.ApplyLedgerChange(context.Background(), 7, -30, model.LedgerKindUsage, "对话会话")
	if err != nil {
		t.Fatalf("出账失败: %v", err)
	}

	if entry.BalanceBefore != 100 || entry.BalanceAfter != 70 {
		t.Fatalf("前后余额期望 100/70，实际 %d/%d", entry.BalanceBefore, entry.BalanceAfter)
	}
	if entry.Status != model.LedgerStatusCompleted {
		t.Fatalf("流水状态期望 COMPLETED，实际 %s", entry.Status)
	}
	if entry.Amount != -30 || entry.Kind != model.LedgerKindUsage {
		t.Fatalf("流水内容不符: %+v", entry)
	}
	if entry.EntryNo == "" {
		t.Fatal("流水号不应为空")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("SQL 期望未满足: %v", err)
	}
}

// 成功入账：奖励发放路径
func TestApplyLedgerChange_CreditSuccess(t *testing.T) {
	db, mock := newMockDB(t)
	svc := newTestCreditService(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM `account`").
		WillReturnRows(accountRows(1, 7, 40, 0))
	mock.ExpectExec("UPDATE `account` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `ledger_entry`").
		WillReturnResult(sqlmock.NewResult(12, 1))
	mock.ExpectCommit()

	entry, err := svc.ApplyLedgerChange(context.Background(), 7, 25, model.LedgerKindReward, "连续学习3天奖励")
	if err != nil {
		t.Fatalf("入账失败: %v", err)
	}
	if entry.BalanceAfter != 65 {
		t.Fatalf("入账后余额期望 65，实际 %d", entry.BalanceAfter)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("SQL 期望未满足: %v", err)
	}
}

// 金额为 0 拒绝，且不碰数据库
func TestApplyLedgerChange_ZeroAmount(t *testing.T) {
	db, mock := newMockDB(t)
	svc := newTestCreditService(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	if _, err := svc.ApplyLedgerChange(context.Background(), 7, 0, model.LedgerKindUsage, ""); err == nil {
		t.Fatal("金额为 0 应报错")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("SQL 期望未满足: %v", err)
	}
}

func TestSpendCredits_RejectsNonPositive(t *testing.T) {
	db, _ := newMockDB(t)
	svc := newTestCreditService(db)

	if _, err := svc.SpendCredits(context.Background(), 7, 0, "会话"); err == nil {
		t.Fatal("消耗 0 积分应报错")
	}
	if _, err := svc.SpendCredits(context.Background(), 7, -5, "会话"); err == nil {
		t.Fatal("消耗负数积分应报错")
	}
}
