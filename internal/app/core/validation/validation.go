// Package validation 將不可信的原始 payload 轉為型別化的帳務請求。
//
// 每個欄位獨立解碼，欄位型別錯誤只會記在該欄位上；接著以 validator 檢查
// 必填與字串規則，最後檢查金額。同一欄位只保留第一個錯誤，但所有欄位都會回報。
package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// 錯誤訊息使用 JSON 欄位名稱
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("notblank", notBlank); err != nil {
		panic(err)
	}
	return v
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

type createPayload struct {
	Name     *string          `json:"name" validate:"required,notblank"`
	Password *string          `json:"password" validate:"required,notblank"`
	Balance  *decimal.Decimal `json:"balance" validate:"-"`
}

type amountPayload struct {
	RefID     *string          `json:"ref_id" validate:"-"`
	AccountID *int64           `json:"account_id" validate:"required,gt=0"`
	Amount    *decimal.Decimal `json:"amount" validate:"-"`
}

type transferPayload struct {
	RefID         *string          `json:"ref_id" validate:"-"`
	FromAccountID *int64           `json:"from_account_id" validate:"required,gt=0"`
	ToAccountID   *int64           `json:"to_account_id" validate:"required,gt=0"`
	Amount        *decimal.Decimal `json:"amount" validate:"-"`
}

type credentialsPayload struct {
	Name     *string `json:"name"`
	Password *string `json:"password"`
}

// ParseCreate 驗證開戶 payload
//
// 參數:
//
//	raw: JSON payload
//
// 回傳:
//
//	domain.CreateRequest: 驗證後的請求
//	error: domain.KindInvalidData 錯誤，包含所有欄位錯誤
func ParseCreate(raw []byte) (domain.CreateRequest, error) {
	d, err := newDecoder(raw)
	if err != nil {
		return domain.CreateRequest{}, err
	}
	var p createPayload
	d.field("name", &p.Name)
	d.field("password", &p.Password)
	d.field("balance", &p.Balance)
	d.check(p)
	if p.Password != nil && len(*p.Password) > domain.MaxPasswordBytes {
		d.add("password", fmt.Sprintf("must be at most %d bytes", domain.MaxPasswordBytes))
	}
	d.nonNegative("balance", p.Balance)
	if err := d.err(); err != nil {
		return domain.CreateRequest{}, err
	}
	return domain.CreateRequest{
		Name:     *p.Name,
		Password: *p.Password,
		Balance:  *p.Balance,
	}, nil
}

// ParseAmount 驗證存款/提款 payload
func ParseAmount(raw []byte) (domain.AmountRequest, error) {
	d, err := newDecoder(raw)
	if err != nil {
		return domain.AmountRequest{}, err
	}
	var p amountPayload
	d.field("ref_id", &p.RefID)
	d.field("account_id", &p.AccountID)
	d.field("amount", &p.Amount)
	d.check(p)
	refID := d.refID(p.RefID)
	d.positive("amount", p.Amount)
	if err := d.err(); err != nil {
		return domain.AmountRequest{}, err
	}
	return domain.AmountRequest{
		RefID:     refID,
		AccountID: *p.AccountID,
		Amount:    *p.Amount,
	}, nil
}

// ParseTransfer 驗證轉帳 payload，欄位都通過後才檢查轉出與轉入是否相同
func ParseTransfer(raw []byte) (domain.TransferRequest, error) {
	d, err := newDecoder(raw)
	if err != nil {
		return domain.TransferRequest{}, err
	}
	var p transferPayload
	d.field("ref_id", &p.RefID)
	d.field("from_account_id", &p.FromAccountID)
	d.field("to_account_id", &p.ToAccountID)
	d.field("amount", &p.Amount)
	d.check(p)
	refID := d.refID(p.RefID)
	d.positive("amount", p.Amount)
	if err := d.err(); err != nil {
		return domain.TransferRequest{}, err
	}
	if *p.FromAccountID == *p.ToAccountID {
		return domain.TransferRequest{}, domain.ErrSameAccount
	}
	return domain.TransferRequest{
		RefID:         refID,
		FromAccountID: *p.FromAccountID,
		ToAccountID:   *p.ToAccountID,
		Amount:        *p.Amount,
	}, nil
}

// ParseCredentials 解析登入 payload。缺少的欄位保留空字串，交由認證流程回覆統一的失敗訊息
func ParseCredentials(raw []byte) (domain.Credentials, error) {
	d, err := newDecoder(raw)
	if err != nil {
		return domain.Credentials{}, err
	}
	var p credentialsPayload
	d.field("name", &p.Name)
	d.field("password", &p.Password)
	var creds domain.Credentials
	if p.Name != nil {
		creds.Name = *p.Name
	}
	if p.Password != nil {
		creds.Password = *p.Password
	}
	return creds, nil
}

// decoder 累積欄位錯誤，同一欄位只保留第一個
type decoder struct {
	fields     map[string]json.RawMessage
	violations []domain.Violation
	seen       map[string]bool
}

func newDecoder(raw []byte) (*decoder, error) {
	fields := make(map[string]json.RawMessage)
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, domain.InvalidData("payload must be a JSON object")
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, domain.InvalidData("malformed JSON payload")
	}
	return &decoder{fields: fields, seen: make(map[string]bool)}, nil
}

func (d *decoder) add(field, msg string) {
	if d.seen[field] {
		return
	}
	d.seen[field] = true
	d.violations = append(d.violations, domain.Violation{Field: field, Message: msg})
}

// field 解碼單一欄位，缺少或為 null 時保持 nil
func (d *decoder) field(name string, dst any) {
	raw, ok := d.fields[name]
	if !ok || string(raw) == "null" {
		return
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		// json 可能已先配置指標，失敗時還原為 nil
		reflect.ValueOf(dst).Elem().SetZero()
		d.add(name, typeMessage(dst))
	}
}

// check 執行 struct tag 規則
func (d *decoder) check(payload any) {
	err := validate.Struct(payload)
	if err == nil {
		return
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		d.add("", "invalid payload")
		return
	}
	for _, fe := range fieldErrs {
		d.add(fe.Field(), tagMessage(fe))
	}
}

func (d *decoder) nonNegative(name string, v *decimal.Decimal) {
	switch {
	case v == nil:
		d.add(name, "is required")
	case v.IsNegative():
		d.add(name, "must not be negative")
	default:
		d.bounds(name, *v)
	}
}

func (d *decoder) positive(name string, v *decimal.Decimal) {
	switch {
	case v == nil:
		d.add(name, "is required")
	case !v.IsPositive():
		d.add(name, "must be greater than 0")
	default:
		d.bounds(name, *v)
	}
}

func (d *decoder) bounds(name string, v decimal.Decimal) {
	if msg := domain.AmountBoundsViolation(v); msg != "" {
		d.add(name, msg)
	}
}

func (d *decoder) refID(v *string) uuid.UUID {
	if v == nil {
		return uuid.Nil
	}
	id, err := uuid.Parse(*v)
	if err != nil {
		d.add("ref_id", "must be a UUID")
		return uuid.Nil
	}
	return id
}

func (d *decoder) err() error {
	if len(d.violations) == 0 {
		return nil
	}
	return domain.InvalidData("", d.violations...)
}

func typeMessage(dst any) string {
	switch dst.(type) {
	case **string:
		return "must be a string"
	case **int64:
		return "must be an integer"
	case **decimal.Decimal:
		return "must be a number"
	default:
		return "has an invalid type"
	}
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "notblank":
		return "must not be blank"
	case "gt":
		return "must be greater than " + fe.Param()
	default:
		return "is invalid"
	}
}
