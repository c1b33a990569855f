package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/usecase"
)

// errStoreClosed 核心迴圈已停止
var errStoreClosed = errors.New("lmax store is closed")

// storeRequest 包裝一個要在核心迴圈內執行的操作，讓呼叫端可以等待結果
type storeRequest struct {
	op     func() error
	Result chan error // 讓呼叫端等這個 channel
}

// LMAXStore 由單一 goroutine 擁有所有帳戶，所有操作依序在核心迴圈內執行，不需要鎖
type LMAXStore struct {
	accounts map[int64]*domain.Account
	byName   map[string]int64
	nextID   int64
	// 輸送帶 負責接收操作
	requestChan chan *storeRequest
	// 核心迴圈結束後關閉
	done chan struct{}
	// Pool 減少 GC 壓力
	requestPool sync.Pool
	startOnce   sync.Once
}

// NewLMAXStore 建立一個新的 LMAXStore 實例，需呼叫 Start 後才會處理請求
//
// 參數:
//
//	bufferSize: 輸送帶容量
//
// 回傳:
//
//	*LMAXStore: LMAXStore 實例
func NewLMAXStore(bufferSize int) *LMAXStore {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &LMAXStore{
		accounts:    make(map[int64]*domain.Account),
		byName:      make(map[string]int64),
		requestChan: make(chan *storeRequest, bufferSize),
		done:        make(chan struct{}),
		requestPool: sync.Pool{
			New: func() any {
				return &storeRequest{
					Result: make(chan error, 1),
				}
			},
		},
	}
}

// Start 啟動核心迴圈 (非同步)，ctx 結束時處理完剩下的請求後停止
func (l *LMAXStore) Start(ctx context.Context) {
	l.startOnce.Do(func() {
		go l.run(ctx)
	})
}

// Done 核心迴圈結束時關閉
func (l *LMAXStore) Done() <-chan struct{} {
	return l.done
}

func (l *LMAXStore) run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			// 收到關閉信號，把剩下的請求處理完
			l.drain()
			return
		case req := <-l.requestChan:
			req.Result <- req.op()
		}
	}
}

func (l *LMAXStore) drain() {
	for {
		select {
		case req := <-l.requestChan:
			req.Result <- req.op()
		default:
			return
		}
	}
}

// submit 將操作放入輸送帶並等待核心迴圈回傳結果
//
// 呼叫端(等待) -> Channel -> Run Loop (核心) -> Result Channel -> 呼叫端(收到結果)
func (l *LMAXStore) submit(ctx context.Context, op func() error) error {
	req := l.requestPool.Get().(*storeRequest)
	req.op = op

	select {
	case l.requestChan <- req:
	case <-l.done:
		l.requestPool.Put(req)
		return domain.Internal(errStoreClosed)
	case <-ctx.Done():
		l.requestPool.Put(req)
		return ctx.Err()
	}

	// 已進入輸送帶的請求一定要等到結果，否則 op 可能在呼叫端返回後才執行
	select {
	case err := <-req.Result:
		req.op = nil
		l.requestPool.Put(req)
		return err
	case <-l.done:
		select {
		case err := <-req.Result:
			req.op = nil
			l.requestPool.Put(req)
			return err
		default:
			// 迴圈已停止且不會再處理，req 不放回 Pool
			return domain.Internal(errStoreClosed)
		}
	}
}

// Insert implements usecase.AccountStore.
func (l *LMAXStore) Insert(ctx context.Context, account *domain.Account, commit func(domain.Account) error) (domain.Account, error) {
	var out domain.Account
	err := l.submit(ctx, func() error {
		if _, ok := l.byName[account.Name]; ok {
			return domain.NameTaken(account.Name)
		}
		acc := *account
		acc.ID = l.nextID + 1
		if commit != nil {
			if err := commit(acc); err != nil {
				return err
			}
		}
		l.nextID = acc.ID
		l.accounts[acc.ID] = &acc
		l.byName[acc.Name] = acc.ID
		out = acc
		return nil
	})
	return out, err
}

// GetByID implements usecase.AccountStore.
func (l *LMAXStore) GetByID(ctx context.Context, id int64) (domain.Account, error) {
	var out domain.Account
	err := l.submit(ctx, func() error {
		acc, ok := l.accounts[id]
		if !ok {
			return domain.NotFound(id)
		}
		out = *acc
		return nil
	})
	return out, err
}

// GetByName implements usecase.AccountStore.
func (l *LMAXStore) GetByName(ctx context.Context, name string) (domain.Account, error) {
	var out domain.Account
	err := l.submit(ctx, func() error {
		id, ok := l.byName[name]
		if !ok {
			return domain.ErrNotFound
		}
		out = *l.accounts[id]
		return nil
	})
	return out, err
}

// Update 在核心迴圈內執行 fn，fn 不可再呼叫 Store 的其他方法
func (l *LMAXStore) Update(ctx context.Context, ids []int64, fn func(tx usecase.StoreTx) error) error {
	return l.submit(ctx, func() error {
		visible := make(map[int64]*domain.Account, len(ids))
		for _, id := range ids {
			if acc, ok := l.accounts[id]; ok {
				visible[id] = acc
			}
		}
		tx := newStagedTx(visible)
		if err := fn(tx); err != nil {
			return err
		}
		tx.commit()
		return nil
	})
}

var _ usecase.AccountStore = (*LMAXStore)(nil)
