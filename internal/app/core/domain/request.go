package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateRequest 開戶請求
type CreateRequest struct {
	Name     string
	Password string
	Balance  decimal.Decimal
}

// AmountRequest 存款/提款請求
type AmountRequest struct {
	// RefID 冪等鍵，uuid.Nil 表示未提供
	RefID     uuid.UUID
	AccountID int64
	Amount    decimal.Decimal
}

// TransferRequest 轉帳請求
type TransferRequest struct {
	RefID         uuid.UUID
	FromAccountID int64
	ToAccountID   int64
	Amount        decimal.Decimal
}

// Credentials 登入用的帳號密碼
type Credentials struct {
	Name     string
	Password string
}

// Receipt 交易提交結果，Accounts 依 source 在前的順序排列
type Receipt struct {
	Transaction Transaction
	Accounts    []Snapshot
}
