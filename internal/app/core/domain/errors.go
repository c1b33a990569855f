package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Kind 錯誤種類，transport 層依此決定對外的狀態碼
type Kind uint8

const (
	// KindInternal 非預期的內部錯誤，不對外揭露細節
	KindInternal Kind = iota
	// KindInvalidData 請求資料格式或語意錯誤
	KindInvalidData
	// KindNotFound 找不到帳戶
	KindNotFound
	// KindInsufficientFunds 餘額不足
	KindInsufficientFunds
	// KindAuthenticationFailed 帳號或密碼錯誤
	KindAuthenticationFailed
)

func (k Kind) String() string {
	switch k {
	case KindInvalidData:
		return "invalid_data"
	case KindNotFound:
		return "not_found"
	case KindInsufficientFunds:
		return "insufficient_funds"
	case KindAuthenticationFailed:
		return "authentication_failed"
	default:
		return "internal"
	}
}

// Violation 單一欄位的驗證錯誤
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error 帳務操作回傳的錯誤
//
// 結構:
//
//	Kind: 錯誤種類
//	Message: 可對外顯示的訊息
//	Violations: 欄位驗證錯誤 (僅 KindInvalidData)
type Error struct {
	Kind       Kind
	Message    string
	Violations []Violation
	cause      error
}

var (
	// ErrInvalidData 請求資料錯誤
	ErrInvalidData = &Error{Kind: KindInvalidData}

	// ErrNotFound 找不到帳戶
	ErrNotFound = &Error{Kind: KindNotFound}

	// ErrInsufficientFunds 餘額不足
	ErrInsufficientFunds = &Error{Kind: KindInsufficientFunds}

	// ErrAuthenticationFailed 認證失敗
	ErrAuthenticationFailed = &Error{Kind: KindAuthenticationFailed}

	// ErrInternal 內部錯誤
	ErrInternal = &Error{Kind: KindInternal}

	// ErrAmountMustBePositive 金額必須為正數
	ErrAmountMustBePositive = InvalidData("amount must be positive")

	// ErrSameAccount 轉出與轉入帳戶相同
	ErrSameAccount = InvalidData("from_account_id and to_account_id cannot be the same")
)

func (e *Error) Error() string {
	if e.Kind == KindInternal {
		return "internal error"
	}
	msg := e.Message
	if msg == "" {
		msg = strings.ReplaceAll(e.Kind.String(), "_", " ")
	}
	if len(e.Violations) == 0 {
		return msg
	}
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		if v.Field == "" {
			parts = append(parts, v.Message)
			continue
		}
		parts = append(parts, v.Field+": "+v.Message)
	}
	return msg + ": " + strings.Join(parts, "; ")
}

// Unwrap 回傳內部原因，只給 log 使用
func (e *Error) Unwrap() error {
	return e.cause
}

// Is 讓 errors.Is(err, ErrNotFound) 這類比對以 Kind 為準
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Message != "" || t.Violations != nil || t.cause != nil {
		return e == t
	}
	return e.Kind == t.Kind
}

// KindOf 取得錯誤種類，非 *Error 一律視為內部錯誤
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// InvalidData 建立資料錯誤
func InvalidData(msg string, violations ...Violation) *Error {
	return &Error{Kind: KindInvalidData, Message: msg, Violations: violations}
}

// NotFound 建立找不到帳戶錯誤
func NotFound(accountID int64) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("account `id=%d` not found", accountID)}
}

// InsufficientFunds 建立餘額不足錯誤
func InsufficientFunds(accountID int64) *Error {
	return &Error{Kind: KindInsufficientFunds, Message: fmt.Sprintf("account `id=%d` has insufficient funds", accountID)}
}

// AuthenticationFailed 認證失敗，刻意不區分帳號不存在或密碼錯誤
func AuthenticationFailed() *Error {
	return &Error{Kind: KindAuthenticationFailed, Message: "authentication failed: invalid name or password"}
}

// NameTaken 帳戶名稱已存在
func NameTaken(name string) *Error {
	return InvalidData(fmt.Sprintf("name '%s' already exists", name))
}

// Internal 包裝內部錯誤
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, cause: cause}
}

// WithPrefix 為錯誤訊息加上操作名稱，保留種類與欄位錯誤
func WithPrefix(err error, prefix string) error {
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindInternal {
		return err
	}
	out := *e
	if out.Message == "" {
		out.Message = prefix
	} else {
		out.Message = prefix + ": " + out.Message
	}
	return &out
}
