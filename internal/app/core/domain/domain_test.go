package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountDepositWithdraw(t *testing.T) {
	acc := NewAccount("alice", "hash", decimal.NewFromInt(100))
	acc.ID = 1

	require.NoError(t, acc.Deposit(decimal.RequireFromString("0.1")))
	require.NoError(t, acc.Deposit(decimal.RequireFromString("0.2")))
	assert.True(t, acc.Balance.Equal(decimal.RequireFromString("100.3")), acc.Balance.String())

	err := acc.Withdraw(decimal.NewFromInt(200))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.True(t, acc.Balance.Equal(decimal.RequireFromString("100.3")))

	assert.ErrorIs(t, acc.Deposit(decimal.Zero), ErrInvalidData)
	assert.ErrorIs(t, acc.Withdraw(decimal.NewFromInt(-1)), ErrAmountMustBePositive)

	require.NoError(t, acc.Withdraw(decimal.RequireFromString("100.3")))
	assert.True(t, acc.Balance.IsZero())
}

func TestSnapshotOmitsPassword(t *testing.T) {
	acc := &Account{ID: 7, Name: "bob", PasswordHash: "secret", Balance: decimal.NewFromInt(5)}
	snap := acc.Snapshot()
	assert.Equal(t, int64(7), snap.ID)
	assert.Equal(t, "bob", snap.Name)
	assert.True(t, snap.Balance.Equal(decimal.NewFromInt(5)))
}

func TestGetLockIDs(t *testing.T) {
	tests := []struct {
		name string
		tran Transaction
		want []int64
	}{
		{"transfer ascending", Transaction{Type: TransactionTypeTransfer, From: 1, To: 2}, []int64{1, 2}},
		{"transfer descending", Transaction{Type: TransactionTypeTransfer, From: 9, To: 3}, []int64{3, 9}},
		{"deposit", Transaction{Type: TransactionTypeDeposit, To: 4}, []int64{4}},
		{"withdraw", Transaction{Type: TransactionTypeWithdraw, From: 5}, []int64{5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.tran.GetLockIDs())
		})
	}
}

func TestTransactionValidate(t *testing.T) {
	ten := decimal.NewFromInt(10)
	tests := []struct {
		name    string
		tran    Transaction
		wantErr bool
	}{
		{"deposit ok", Transaction{Type: TransactionTypeDeposit, To: 1, Amount: ten}, false},
		{"zero amount", Transaction{Type: TransactionTypeDeposit, To: 1, Amount: decimal.Zero}, true},
		{"withdraw without account", Transaction{Type: TransactionTypeWithdraw, Amount: ten}, true},
		{"transfer same account", Transaction{Type: TransactionTypeTransfer, From: 1, To: 1, Amount: ten}, true},
		{"transfer ok", Transaction{Type: TransactionTypeTransfer, From: 1, To: 2, Amount: ten}, false},
		{"unknown type", Transaction{Type: 99, To: 1, Amount: ten}, true},
		{"too many decimal places", Transaction{Type: TransactionTypeDeposit, To: 1, Amount: decimal.New(1, -20000000)}, true},
		{"above ceiling", Transaction{Type: TransactionTypeDeposit, To: 1, Amount: decimal.New(1, 16)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tran.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidData)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestAmountBoundsViolation(t *testing.T) {
	tests := []struct {
		amount string
		want   string
	}{
		{"0.00000001", ""},
		{"0.000000001", "must have at most 8 decimal places"},
		{"1e-20000000", "must have at most 8 decimal places"},
		{"1000000000000000", ""},
		{"1000000000000000.5", "must not exceed 1000000000000000"},
		{"1e20000000", "must not exceed 1000000000000000"},
		{"123.45", ""},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.want, AmountBoundsViolation(decimal.RequireFromString(tt.amount)))
		})
	}
}

func TestErrorKinds(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(NotFound(3)))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, KindInsufficientFunds, KindOf(fmt.Errorf("wrapped: %w", InsufficientFunds(1))))

	assert.ErrorIs(t, NameTaken("alice"), ErrInvalidData)
	assert.NotErrorIs(t, NameTaken("alice"), ErrNotFound)
	assert.NotErrorIs(t, ErrInvalidData, ErrAmountMustBePositive)
}

func TestInternalErrorIsOpaque(t *testing.T) {
	cause := errors.New("map corrupted at slot 12")
	err := Internal(cause)
	assert.Equal(t, "internal error", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrInternal)
}

func TestErrorMessageWithViolations(t *testing.T) {
	err := WithPrefix(InvalidData("", Violation{Field: "name", Message: "is required"}, Violation{Field: "balance", Message: "must not be negative"}), "create account failed")
	assert.Equal(t, "create account failed: name: is required; balance: must not be negative", err.Error())
	assert.ErrorIs(t, err, ErrInvalidData)

	assert.Equal(t, "deposit failed: account `id=9` not found", WithPrefix(NotFound(9), "deposit failed").Error())

	internal := Internal(errors.New("x"))
	assert.Same(t, internal, WithPrefix(internal, "deposit failed"))
}
