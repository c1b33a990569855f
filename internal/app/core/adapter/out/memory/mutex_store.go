package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/usecase"
)

// accountRecord 單一帳戶與保護它的鎖
type accountRecord struct {
	mu      sync.Mutex
	account domain.Account
}

// MutexStore 是一個使用 Mutex 實現的帳戶儲存
//
// 結構:
//
//	mu: 保護 accounts / byName 索引與 nextID
//	accounts: 帳戶 ID 對應帳戶紀錄，每筆紀錄有自己的鎖保護餘額
//	byName: 帳戶名稱對應帳戶 ID
//	nextID: 最後一個已配發的帳戶 ID
type MutexStore struct {
	mu       sync.RWMutex
	accounts map[int64]*accountRecord
	byName   map[string]int64
	nextID   int64
}

// NewMutexStore 建立一個空的 MutexStore 實例
func NewMutexStore() *MutexStore {
	return &MutexStore{
		accounts: make(map[int64]*accountRecord),
		byName:   make(map[string]int64),
	}
}

// Insert 新增帳戶
//
// 參數:
//
//	ctx: 上下文
//	account: 新帳戶 (ID 由 Store 配發)
//	commit: 帳戶對外可見前的回呼，可為 nil
//
// 回傳:
//
//	domain.Account: 已配發 ID 的帳戶副本
//	error: 名稱重複或 commit 失敗
func (m *MutexStore) Insert(ctx context.Context, account *domain.Account, commit func(domain.Account) error) (domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return domain.Account{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byName[account.Name]; ok {
		return domain.Account{}, domain.NameTaken(account.Name)
	}
	acc := *account
	acc.ID = m.nextID + 1
	if commit != nil {
		if err := commit(acc); err != nil {
			return domain.Account{}, err
		}
	}
	m.nextID = acc.ID
	m.accounts[acc.ID] = &accountRecord{account: acc}
	m.byName[acc.Name] = acc.ID
	return acc, nil
}

// GetByID 取得帳戶副本
func (m *MutexStore) GetByID(ctx context.Context, id int64) (domain.Account, error) {
	m.mu.RLock()
	rec, ok := m.accounts[id]
	m.mu.RUnlock()
	if !ok {
		return domain.Account{}, domain.NotFound(id)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.account, nil
}

// GetByName 依名稱取得帳戶副本
func (m *MutexStore) GetByName(ctx context.Context, name string) (domain.Account, error) {
	m.mu.RLock()
	id, ok := m.byName[name]
	m.mu.RUnlock()
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return m.GetByID(ctx, id)
}

// Update 依 ID 升冪取得帳戶鎖後執行 fn
//
// 參數:
//
//	ctx: 上下文
//	ids: 需要鎖定的帳戶 ID，不存在的 ID 會在 fn 內以 NotFound 呈現
//	fn: 讀取並暫存餘額變更，回傳 nil 時才提交
//
// 回傳:
//
//	error: fn 的錯誤
func (m *MutexStore) Update(ctx context.Context, ids []int64, fn func(tx usecase.StoreTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// 固定的全域順序，兩筆反向轉帳不會互相等待
	ids = slices.Clone(ids)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	records := make([]*accountRecord, 0, len(ids))
	m.mu.RLock()
	for _, id := range ids {
		if rec, ok := m.accounts[id]; ok {
			records = append(records, rec)
		}
	}
	m.mu.RUnlock()

	visible := make(map[int64]*domain.Account, len(records))
	for _, rec := range records {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		visible[rec.account.ID] = &rec.account
	}

	tx := newStagedTx(visible)
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

var _ usecase.AccountStore = (*MutexStore)(nil)
