package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	// MaxScale 金額與餘額最多的小數位數
	MaxScale int32 = 8
	// maxAmountExponent MaxAmount 的指數，超過時不必比較數值
	maxAmountExponent int32 = 15
	// MaxPasswordBytes bcrypt 只接受 72 bytes 以內的密碼
	MaxPasswordBytes = 72
)

// MaxAmount 單筆金額與初始餘額的上限
var MaxAmount = decimal.New(1, maxAmountExponent)

// AmountBoundsViolation 檢查小數位數與上限，合法時回傳空字串
//
// 先看指數再比較數值，極端指數不會觸發大數 rescale
func AmountBoundsViolation(v decimal.Decimal) string {
	if v.Exponent() < -MaxScale {
		return fmt.Sprintf("must have at most %d decimal places", MaxScale)
	}
	if v.Exponent() > maxAmountExponent || v.GreaterThan(MaxAmount) {
		return "must not exceed " + MaxAmount.String()
	}
	return ""
}

// Account 帳戶，只有 Balance 會在建立後變動
type Account struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	PasswordHash string          `json:"-"`
	Balance      decimal.Decimal `json:"balance"`
}

// Snapshot 帳戶對外的公開欄位快照，不含密碼
type Snapshot struct {
	ID      int64           `json:"id"`
	Name    string          `json:"name"`
	Balance decimal.Decimal `json:"balance"`
}

func NewAccount(name, passwordHash string, balance decimal.Decimal) *Account {
	return &Account{
		Name:         name,
		PasswordHash: passwordHash,
		Balance:      balance,
	}
}

// Snapshot 產生帳戶快照
func (a *Account) Snapshot() Snapshot {
	return Snapshot{
		ID:      a.ID,
		Name:    a.Name,
		Balance: a.Balance,
	}
}

// Deposit 存款
func (a *Account) Deposit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrAmountMustBePositive
	}

	a.Balance = a.Balance.Add(amount)
	return nil
}

// Withdraw 提款
func (a *Account) Withdraw(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrAmountMustBePositive
	}

	if a.Balance.LessThan(amount) {
		return InsufficientFunds(a.ID)
	}

	a.Balance = a.Balance.Sub(amount)
	return nil
}
