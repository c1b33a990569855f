package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/credential"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/validation"
)

// CoreUseCase 是核心業務邏輯層 (帳務引擎)
//
// 所有檢查都在寫入前完成，任何失敗路徑都不會留下部分變更。
type CoreUseCase struct {
	store   AccountStore
	checker *credential.Checker
	// Write-Ahead Logging，可為 nil
	journal Journal
	now     func() time.Time

	// recordMu 保護 sequence，並讓 journal 的寫入順序與順序號一致
	recordMu sync.Mutex
	sequence uint64

	// 已認領的 ref_id，處理中或已完成
	receiptsMu sync.Mutex
	receipts   map[uuid.UUID]*refEntry
}

// refEntry 是一個 ref_id 的認領紀錄
type refEntry struct {
	// 第一次請求的內容，重送時必須相同
	shape domain.Transaction
	// 第一次請求結束時關閉
	done    chan struct{}
	receipt domain.Receipt
	ok      bool
}

// Option 設定 CoreUseCase
type Option func(*CoreUseCase)

// WithJournal 每筆提交的交易都先寫入 journal
func WithJournal(j Journal) Option {
	return func(c *CoreUseCase) {
		c.journal = j
	}
}

// WithClock 替換時間來源 (測試用)
func WithClock(now func() time.Time) Option {
	return func(c *CoreUseCase) {
		c.now = now
	}
}

func NewCoreUseCase(store AccountStore, checker *credential.Checker, opts ...Option) *CoreUseCase {
	c := &CoreUseCase{
		store:    store,
		checker:  checker,
		now:      time.Now,
		receipts: make(map[uuid.UUID]*refEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateAccount 驗證開戶 payload 並建立帳戶
func (c *CoreUseCase) CreateAccount(ctx context.Context, raw []byte) (domain.Snapshot, error) {
	req, err := validation.ParseCreate(raw)
	if err != nil {
		return domain.Snapshot{}, domain.WithPrefix(err, "create account failed")
	}
	return c.Open(ctx, req)
}

// Open 建立帳戶
//
// 參數:
//
//	ctx: 上下文
//	req: 已驗證的開戶請求
//
// 回傳:
//
//	domain.Snapshot: 新帳戶快照
//	error: 名稱重複 (KindInvalidData) 或內部錯誤
func (c *CoreUseCase) Open(ctx context.Context, req domain.CreateRequest) (domain.Snapshot, error) {
	switch {
	case strings.TrimSpace(req.Name) == "":
		return domain.Snapshot{}, domain.InvalidData("create account failed", domain.Violation{Field: "name", Message: "must not be blank"})
	case strings.TrimSpace(req.Password) == "":
		return domain.Snapshot{}, domain.InvalidData("create account failed", domain.Violation{Field: "password", Message: "must not be blank"})
	case len(req.Password) > domain.MaxPasswordBytes:
		return domain.Snapshot{}, domain.InvalidData("create account failed", domain.Violation{Field: "password", Message: fmt.Sprintf("must be at most %d bytes", domain.MaxPasswordBytes)})
	case req.Balance.IsNegative():
		return domain.Snapshot{}, domain.InvalidData("create account failed", domain.Violation{Field: "balance", Message: "must not be negative"})
	}
	if msg := domain.AmountBoundsViolation(req.Balance); msg != "" {
		return domain.Snapshot{}, domain.InvalidData("create account failed", domain.Violation{Field: "balance", Message: msg})
	}

	// bcrypt 很慢，放在臨界區外
	hash, err := c.checker.Hash(req.Password)
	if err != nil {
		return domain.Snapshot{}, domain.Internal(err)
	}

	acc, err := c.store.Insert(ctx, domain.NewAccount(req.Name, hash, req.Balance), func(acc domain.Account) error {
		return c.record(&domain.Transaction{
			TransactionID: uuid.New(),
			To:            acc.ID,
			Amount:        acc.Balance,
			Type:          domain.TransactionTypeOpen,
		})
	})
	if err != nil {
		return domain.Snapshot{}, fail(err, "create account failed")
	}
	return acc.Snapshot(), nil
}

// Authenticate 驗證登入 payload，成功時回傳帳戶名稱供 transport 層發行憑證
//
// payload 不是 JSON 物件時回傳 KindInvalidData，其餘失敗一律回傳 KindAuthenticationFailed
func (c *CoreUseCase) Authenticate(ctx context.Context, raw []byte) (string, error) {
	creds, err := validation.ParseCredentials(raw)
	if err != nil {
		return "", domain.WithPrefix(err, "login failed")
	}
	return c.Login(ctx, creds)
}

// Login 比對帳號密碼，帳號不存在與密碼錯誤回傳相同的錯誤
func (c *CoreUseCase) Login(ctx context.Context, creds domain.Credentials) (string, error) {
	acc, err := c.store.GetByName(ctx, creds.Name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", c.checker.Check(nil, creds.Password)
		}
		return "", fail(err, "authentication failed")
	}
	if err := c.checker.Check(&acc, creds.Password); err != nil {
		return "", err
	}
	return acc.Name, nil
}

// Deposit 驗證存款 payload 並入帳
func (c *CoreUseCase) Deposit(ctx context.Context, raw []byte) (domain.Snapshot, error) {
	req, err := validation.ParseAmount(raw)
	if err != nil {
		return domain.Snapshot{}, domain.WithPrefix(err, "deposit failed")
	}
	receipt, err := c.Post(ctx, domain.NewDeposit(req))
	if err != nil {
		return domain.Snapshot{}, fail(err, "deposit failed")
	}
	return receipt.Accounts[0], nil
}

// Withdraw 驗證提款 payload 並扣款
func (c *CoreUseCase) Withdraw(ctx context.Context, raw []byte) (domain.Snapshot, error) {
	req, err := validation.ParseAmount(raw)
	if err != nil {
		return domain.Snapshot{}, domain.WithPrefix(err, "withdraw failed")
	}
	receipt, err := c.Post(ctx, domain.NewWithdraw(req))
	if err != nil {
		return domain.Snapshot{}, fail(err, "withdraw failed")
	}
	return receipt.Accounts[0], nil
}

// Transfer 驗證轉帳 payload 並轉帳，回傳 (轉出帳戶, 轉入帳戶)
func (c *CoreUseCase) Transfer(ctx context.Context, raw []byte) (domain.Snapshot, domain.Snapshot, error) {
	req, err := validation.ParseTransfer(raw)
	if err != nil {
		return domain.Snapshot{}, domain.Snapshot{}, domain.WithPrefix(err, "transfer failed")
	}
	receipt, err := c.Post(ctx, domain.NewTransfer(req))
	if err != nil {
		return domain.Snapshot{}, domain.Snapshot{}, fail(err, fmt.Sprintf("transfer from `id=%d` to `id=%d` failed", req.FromAccountID, req.ToAccountID))
	}
	return receipt.Accounts[0], receipt.Accounts[1], nil
}

// GetAccount 取得帳戶快照
func (c *CoreUseCase) GetAccount(ctx context.Context, id int64) (domain.Snapshot, error) {
	if id <= 0 {
		return domain.Snapshot{}, domain.InvalidData("", domain.Violation{Field: "account_id", Message: "must be greater than 0"})
	}
	acc, err := c.store.GetByID(ctx, id)
	if err != nil {
		return domain.Snapshot{}, fail(err, "get account failed")
	}
	return acc.Snapshot(), nil
}

// Post 處理交易
//
// 參數:
//
//	ctx: 上下文
//	tran: 交易請求物件，TransactionID 不為 uuid.Nil 時作為冪等鍵
//
// 回傳:
//
//	domain.Receipt: 提交結果，重複的冪等鍵回傳第一次的結果
//	error: 處理錯誤，冪等鍵已用於內容不同的請求時回傳 KindInvalidData
func (c *CoreUseCase) Post(ctx context.Context, tran *domain.Transaction) (domain.Receipt, error) {
	if err := tran.Validate(); err != nil {
		return domain.Receipt{}, err
	}
	if tran.TransactionID == uuid.Nil {
		return c.commit(ctx, tran)
	}

	for {
		entry, owner, err := c.claimRef(tran)
		if err != nil {
			return domain.Receipt{}, err
		}
		if owner {
			receipt, err := c.commit(ctx, tran)
			c.releaseRef(tran.TransactionID, entry, receipt, err)
			return receipt, err
		}

		select {
		case <-entry.done:
		case <-ctx.Done():
			return domain.Receipt{}, ctx.Err()
		}
		if entry.ok {
			return entry.receipt, nil
		}
		// 第一次請求失敗並已釋放 ref_id，重新認領
	}
}

// commit 在帳戶鎖內套用交易並寫入 journal
func (c *CoreUseCase) commit(ctx context.Context, tran *domain.Transaction) (domain.Receipt, error) {
	var receipt domain.Receipt
	err := c.store.Update(ctx, tran.GetLockIDs(), func(tx StoreTx) error {
		accounts, err := apply(tx, tran)
		if err != nil {
			return err
		}

		committed := *tran
		if committed.TransactionID == uuid.Nil {
			committed.TransactionID = uuid.New()
		}
		if err := c.record(&committed); err != nil {
			return err
		}
		receipt = domain.Receipt{Transaction: committed, Accounts: accounts}
		return nil
	})
	if err != nil {
		return domain.Receipt{}, err
	}
	return receipt, nil
}

// claimRef 認領 ref_id
//
// 回傳:
//
//	*refEntry: ref_id 的認領紀錄
//	bool: true 表示由呼叫者處理交易，處理完必須呼叫 releaseRef
//	error: ref_id 已用於內容不同的請求
func (c *CoreUseCase) claimRef(tran *domain.Transaction) (*refEntry, bool, error) {
	c.receiptsMu.Lock()
	defer c.receiptsMu.Unlock()
	if e, ok := c.receipts[tran.TransactionID]; ok {
		if !sameShape(e.shape, *tran) {
			return nil, false, domain.InvalidData("", domain.Violation{Field: "ref_id", Message: "already used by a different request"})
		}
		return e, false, nil
	}
	e := &refEntry{shape: *tran, done: make(chan struct{})}
	c.receipts[tran.TransactionID] = e
	return e, true, nil
}

// releaseRef 成功時保留結果，失敗時釋放 ref_id 讓之後的請求重新處理
func (c *CoreUseCase) releaseRef(id uuid.UUID, e *refEntry, receipt domain.Receipt, err error) {
	c.receiptsMu.Lock()
	if err == nil {
		e.receipt = receipt
		e.ok = true
	} else {
		delete(c.receipts, id)
	}
	c.receiptsMu.Unlock()
	close(e.done)
}

func sameShape(a, b domain.Transaction) bool {
	return a.Type == b.Type && a.From == b.From && a.To == b.To && a.Amount.Equal(b.Amount)
}

// apply 依交易類型暫存餘額變更，扣款前檢查餘額
func apply(tx StoreTx, tran *domain.Transaction) ([]domain.Snapshot, error) {
	switch tran.Type {
	case domain.TransactionTypeDeposit:
		to, err := tx.Get(tran.To)
		if err != nil {
			return nil, err
		}
		if err := to.Deposit(tran.Amount); err != nil {
			return nil, err
		}
		if err := tx.SetBalance(to.ID, to.Balance); err != nil {
			return nil, err
		}
		return []domain.Snapshot{to.Snapshot()}, nil

	case domain.TransactionTypeWithdraw:
		from, err := tx.Get(tran.From)
		if err != nil {
			return nil, err
		}
		if err := from.Withdraw(tran.Amount); err != nil {
			return nil, err
		}
		if err := tx.SetBalance(from.ID, from.Balance); err != nil {
			return nil, err
		}
		return []domain.Snapshot{from.Snapshot()}, nil

	case domain.TransactionTypeTransfer:
		from, err := tx.Get(tran.From)
		if err != nil {
			return nil, err
		}
		to, err := tx.Get(tran.To)
		if err != nil {
			return nil, err
		}
		if err := from.Withdraw(tran.Amount); err != nil {
			return nil, err
		}
		if err := to.Deposit(tran.Amount); err != nil {
			return nil, err
		}
		if err := tx.SetBalance(from.ID, from.Balance); err != nil {
			return nil, err
		}
		if err := tx.SetBalance(to.ID, to.Balance); err != nil {
			return nil, err
		}
		return []domain.Snapshot{from.Snapshot(), to.Snapshot()}, nil
	}
	return nil, domain.InvalidData("unsupported transaction type")
}

// record 配發順序號並寫入 journal，必須在臨界區內呼叫
//
// 順序號在 journal 寫入成功後才生效，寫入失敗不會留下空號
func (c *CoreUseCase) record(tran *domain.Transaction) error {
	c.recordMu.Lock()
	defer c.recordMu.Unlock()
	tran.Sequence = c.sequence + 1
	tran.CreatedAt = c.now().UnixNano()
	if c.journal != nil {
		if err := c.journal.Write(tran); err != nil {
			return domain.Internal(fmt.Errorf("journal write failed: %w", err))
		}
	}
	c.sequence = tran.Sequence
	return nil
}

// fail 保留帳務錯誤的種類並加上操作名稱，其他錯誤一律轉為內部錯誤
func fail(err error, prefix string) error {
	var e *domain.Error
	if !errors.As(err, &e) {
		return domain.Internal(err)
	}
	return domain.WithPrefix(err, prefix)
}
