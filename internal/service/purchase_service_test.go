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
	"gorm.io/gorm"
)

func newTestPurchaseService(db *gorm.DB) *PurchaseService {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	return NewPurchaseService(db, rdb, cfg)
}

func ledgerRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "entry_no", "request_id", "user_id", "kind", "amount", "status"})
}

// 同一 request_id 重复下单：直接返回已有购买单，不再落新流水
func TestCreatePendingPurchase_Idempotent(t *testing.T) {
	db, mock := newMockDB(t)
	svc := newTestPurchaseService(db)

	mock.ExpectQuery("SELECT (.+) FROM `ledger_entry`").
		WillReturnRows(ledgerRows().
			AddRow(1, "PUR1", "req-1", 7, model.LedgerKindPurchase, 500, model.LedgerStatusPending))

	resp, err := svc.CreatePendingPurchase(context.Background(), &CreatePurchaseRequest{
		RequestID:  "req-1",
		UserID:     7,
		Credits:    500,
		PriceCents: 499,
	})
	if err != nil {
		t.Fatalf("幂等命中不应报错: %v", err)
	}
	if resp.EntryNo != "PUR1" {
		t.Fatalf("期望返回已有购买单 PUR1，实际 %s", resp.EntryNo)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("幂等命中不应有 INSERT: %v", err)
	}
}

// 首次下单：落一条 PENDING 流水，余额零影响
func TestCreatePendingPurchase_CreatesEntry(t *testing.T) {
	db, mock := newMockDB(t)
	svc := newTestPurchaseService(db)

	// request_id 没查到
	mock.ExpectQuery("SELECT (.+) FROM `ledger_entry`").
		WillReturnRows(ledgerRows())
	// 账户已存在
	mock.ExpectQuery("SELECT (.+) FROM `account`").
		WillReturnRows(accountRows(1, 7, 0, 0))
	mock.ExpectExec("INSERT INTO `ledger_entry`").
		WillReturnResult(sqlmock.NewResult(21, 1))

	resp, err := svc.CreatePendingPurchase(context.Background(), &CreatePurchaseRequest{
		RequestID:  "req-2",
		UserID:     7,
		Credits:    500,
		PriceCents: 499,
	})
	if err != nil {
		t.Fatalf("创建购买单失败: %v", err)
	}
	if resp.Status != model.LedgerStatusPending {
		t.Fatalf("新购买单状态期望 PENDING，实际 %s", resp.Status)
	}
	if resp.Credits != 500 {
		t.Fatalf("购买积分期望 500，实际 %d", resp.Credits)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("SQL 期望未满足: %v", err)
	}
}

func TestCompletePurchase_EntryNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	svc := newTestPurchaseService(db)

	mock.ExpectQuery("SELECT (.+) FROM `ledger_entry`").
		WillReturnRows(ledgerRows())

	_, err := svc.CompletePurchase(context.Background(), &CompletePurchaseRequest{
		EntryNo:           "PUR404",
		ExternalPaymentID: "pay_1",
		UserID:            7,
	})
	if !errors.Is(err, repository.ErrEntryNotFound) {
		t.Fatalf("期望 ErrEntryNotFound，实际 %v", err)
	}
}

// 拿别人的购买单来回调：拒绝，且不产生任何写入
func TestCompletePurchase_NotOwned(t *testing.T) {
	db, mock := newMockDB(t)
	svc := newTestPurchaseService(db)

	mock.ExpectQuery("SELECT (.+) FROM `ledger_entry`").
		WillReturnRows(ledgerRows().
			AddRow(1, "PUR1", "req-1", 99, model.LedgerKindPurchase, 500, model.LedgerStatusPending))

	_, err := svc.CompletePurchase(context.Background(), &CompletePurchaseRequest{
		EntryNo:           "PUR1",
		ExternalPaymentID: "pay_1",
		UserID:            7,
	})
	if !errors.Is(err, ErrNotOwned) {
		t.Fatalf("期望 ErrNotOwned，实际 %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("越权回调不应有写入: %v", err)
	}
}

// 重复回调：流水已是终态，归类为无害空操作失败，余额不动
func TestCompletePurchase_AlreadyProcessed(t *testing.T) {
	db, mock := newMockDB(t)
	svc := newTestPurchaseService(db)

	mock.ExpectQuery("SELECT (.+) FROM `ledger_entry`").
		WillReturnRows(ledgerRows().
			AddRow(1, "PUR1", "req-1", 7, model.LedgerKindPurchase, 500, model.LedgerStatusCompleted))

	_, err := svc.CompletePurchase(context.Background(), &CompletePurchaseRequest{
		EntryNo:           "PUR1",
		ExternalPaymentID: "pay_1",
		UserID:            7,
	})
	if !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("期望 ErrAlreadyProcessed，实际 %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("重复回调不应有写入: %v", err)
	}
}
