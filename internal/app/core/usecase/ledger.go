package usecase

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
)

// AccountStore 帳戶儲存介面，唯一擁有所有帳戶資料
type AccountStore interface {
	// Insert 在同一個臨界區內檢查名稱唯一、配發帳戶 ID 並新增帳戶
	// commit 不為 nil 時會在帳戶對外可見前呼叫，回傳錯誤則放棄新增且不消耗 ID
	Insert(ctx context.Context, account *domain.Account, commit func(domain.Account) error) (domain.Account, error)
	// GetByID 依 ID 取得帳戶副本
	GetByID(ctx context.Context, id int64) (domain.Account, error)
	// GetByName 依名稱取得帳戶副本
	GetByName(ctx context.Context, name string) (domain.Account, error)
	// Update 鎖定 ids 對應的帳戶後執行 fn，fn 回傳 nil 才一次提交所有餘額變更
	Update(ctx context.Context, ids []int64, fn func(tx StoreTx) error) error
}

// StoreTx Update 期間可見的帳戶狀態
type StoreTx interface {
	// Get 取得帳戶 (含本次尚未提交的餘額)
	Get(id int64) (domain.Account, error)
	// SetBalance 暫存新餘額，呼叫端須保證 balance >= 0
	SetBalance(id int64, balance decimal.Decimal) error
}

// Journal 已提交交易的寫入端
type Journal interface {
	Write(v any) error
}
