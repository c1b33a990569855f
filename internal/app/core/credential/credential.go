// Package credential 驗證帳號密碼，只負責比對，不發行 token。
package credential

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
)

// Checker 以 bcrypt 雜湊儲存並比對密碼
type Checker struct {
	cost int
	// dummyHash 帳號不存在時仍執行一次比對，避免從回應時間推測帳號是否存在
	dummyHash []byte
}

// NewChecker 建立 Checker
//
// 參數:
//
//	cost: bcrypt cost，0 代表 bcrypt.DefaultCost
//
// 回傳:
//
//	*Checker: Checker 實例
//	error: cost 超出範圍
func NewChecker(cost int) (*Checker, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("ledger-dummy-password"), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}
	return &Checker{cost: cost, dummyHash: dummy}, nil
}

// Hash 產生密碼雜湊
func (c *Checker) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), c.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Check 比對帳戶與密碼，account 為 nil 代表帳號不存在
func (c *Checker) Check(account *domain.Account, password string) error {
	if account == nil {
		_ = bcrypt.CompareHashAndPassword(c.dummyHash, []byte(password))
		return domain.AuthenticationFailed()
	}
	if password == "" {
		return domain.AuthenticationFailed()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return domain.AuthenticationFailed()
	}
	return nil
}
