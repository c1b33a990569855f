package memory

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/usecase"
)

// stagedTx 暫存 Update 期間的餘額變更，fn 成功後才寫回帳戶
type stagedTx struct {
	accounts map[int64]*domain.Account
	staged   map[int64]decimal.Decimal
}

func newStagedTx(accounts map[int64]*domain.Account) *stagedTx {
	return &stagedTx{
		accounts: accounts,
		staged:   make(map[int64]decimal.Decimal, len(accounts)),
	}
}

func (tx *stagedTx) Get(id int64) (domain.Account, error) {
	acc, ok := tx.accounts[id]
	if !ok {
		return domain.Account{}, domain.NotFound(id)
	}
	out := *acc
	if balance, ok := tx.staged[id]; ok {
		out.Balance = balance
	}
	return out, nil
}

func (tx *stagedTx) SetBalance(id int64, balance decimal.Decimal) error {
	if _, ok := tx.accounts[id]; !ok {
		return domain.Internal(fmt.Errorf("account %d is not locked by this update", id))
	}
	if balance.IsNegative() {
		return domain.Internal(fmt.Errorf("refusing negative balance %s for account %d", balance, id))
	}
	tx.staged[id] = balance
	return nil
}

// commit 寫回餘額，呼叫端須持有相關帳戶的鎖
func (tx *stagedTx) commit() {
	for id, balance := range tx.staged {
		tx.accounts[id].Balance = balance
	}
}

var _ usecase.StoreTx = (*stagedTx)(nil)
