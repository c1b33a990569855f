package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType 交易類型
type TransactionType uint8

const (
	// 存款
	TransactionTypeDeposit TransactionType = 1
	// 提款
	TransactionTypeWithdraw TransactionType = 2
	// 轉帳
	TransactionTypeTransfer TransactionType = 3
	// 開戶 (初始餘額入帳)
	TransactionTypeOpen TransactionType = 4
)

func (t TransactionType) String() string {
	switch t {
	case TransactionTypeDeposit:
		return "deposit"
	case TransactionTypeWithdraw:
		return "withdraw"
	case TransactionTypeTransfer:
		return "transfer"
	case TransactionTypeOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Transaction 一筆已驗證的帳務異動
type Transaction struct {
	// Sequence: 由核心引擎在提交時分配的順序號 (1, 2, 3...)
	Sequence uint64 `json:"seq"`
	// From, To: 帳戶 ID，存款只有 To，提款只有 From
	From int64 `json:"from,omitempty"`
	To   int64 `json:"to,omitempty"`
	// Amount: 金額
	Amount decimal.Decimal `json:"amount"`
	// CreatedAt: 提交時間 (unix nano)
	CreatedAt int64 `json:"created_at"`
	// TransactionID: 外部追蹤號 (ref_id)，未提供時由引擎產生
	TransactionID uuid.UUID       `json:"id"`
	Type          TransactionType `json:"type"`
}

// NewDeposit 建立存款交易
func NewDeposit(req AmountRequest) *Transaction {
	return &Transaction{
		TransactionID: req.RefID,
		To:            req.AccountID,
		Amount:        req.Amount,
		Type:          TransactionTypeDeposit,
	}
}

// NewWithdraw 建立提款交易
func NewWithdraw(req AmountRequest) *Transaction {
	return &Transaction{
		TransactionID: req.RefID,
		From:          req.AccountID,
		Amount:        req.Amount,
		Type:          TransactionTypeWithdraw,
	}
}

// NewTransfer 建立轉帳交易
func NewTransfer(req TransferRequest) *Transaction {
	return &Transaction{
		TransactionID: req.RefID,
		From:          req.FromAccountID,
		To:            req.ToAccountID,
		Amount:        req.Amount,
		Type:          TransactionTypeTransfer,
	}
}

// Validate 檢查金額與帳戶組合，必須在任何寫入之前呼叫
func (t *Transaction) Validate() error {
	if !t.Amount.IsPositive() {
		return ErrAmountMustBePositive
	}
	if msg := AmountBoundsViolation(t.Amount); msg != "" {
		return InvalidData("amount " + msg)
	}
	switch t.Type {
	case TransactionTypeDeposit:
		if t.To <= 0 {
			return InvalidData("account_id must be a positive integer")
		}
	case TransactionTypeWithdraw:
		if t.From <= 0 {
			return InvalidData("account_id must be a positive integer")
		}
	case TransactionTypeTransfer:
		if t.From <= 0 || t.To <= 0 {
			return InvalidData("account ids must be positive integers")
		}
		if t.From == t.To {
			return ErrSameAccount
		}
	default:
		return InvalidData("unsupported transaction type")
	}
	return nil
}

// GetLockIDs 回傳需要鎖定的帳號 ID，並確保升冪順序以避免死鎖
func (t *Transaction) GetLockIDs() (ids []int64) {
	ids = make([]int64, 0, 2)
	switch t.Type {
	case TransactionTypeTransfer:
		if t.From < t.To {
			ids = append(ids, t.From, t.To)
		} else {
			ids = append(ids, t.To, t.From)
		}
	case TransactionTypeDeposit, TransactionTypeOpen:
		ids = append(ids, t.To)
	case TransactionTypeWithdraw:
		ids = append(ids, t.From)
	}
	return ids
}
