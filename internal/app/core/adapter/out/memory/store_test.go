package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/usecase"
)

// storeFactories 兩種實作跑同一組測試
func storeFactories() map[string]func(t *testing.T) usecase.AccountStore {
	return map[string]func(t *testing.T) usecase.AccountStore{
		"mutex": func(t *testing.T) usecase.AccountStore {
			return NewMutexStore()
		},
		"lmax": func(t *testing.T) usecase.AccountStore {
			ctx, cancel := context.WithCancel(context.Background())
			s := NewLMAXStore(16)
			s.Start(ctx)
			t.Cleanup(func() {
				cancel()
				<-s.Done()
			})
			return s
		},
	}
}

func insert(t *testing.T, s usecase.AccountStore, name string, balance int64) domain.Account {
	t.Helper()
	acc, err := s.Insert(context.Background(), domain.NewAccount(name, "hash", decimal.NewFromInt(balance)), nil)
	require.NoError(t, err)
	return acc
}

func TestStoreInsertAssignsSequentialIDs(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			alice := insert(t, s, "alice", 100)
			assert.Equal(t, int64(1), alice.ID)

			_, err := s.Insert(ctx, domain.NewAccount("alice", "hash", decimal.Zero), nil)
			assert.ErrorIs(t, err, domain.ErrInvalidData)

			// commit 失敗時不消耗 ID
			_, err = s.Insert(ctx, domain.NewAccount("carol", "hash", decimal.Zero), func(domain.Account) error {
				return errors.New("journal down")
			})
			assert.Error(t, err)
			_, err = s.GetByName(ctx, "carol")
			assert.ErrorIs(t, err, domain.ErrNotFound)

			bob := insert(t, s, "bob", 50)
			assert.Equal(t, int64(2), bob.ID)

			got, err := s.GetByName(ctx, "bob")
			require.NoError(t, err)
			assert.Equal(t, bob, got)

			got, err = s.GetByID(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, "alice", got.Name)

			_, err = s.GetByID(ctx, 99)
			assert.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
}

func TestStoreInsertReturnsCopy(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			acc := insert(t, s, "alice", 100)
			acc.Balance = decimal.NewFromInt(1)

			got, err := s.GetByID(context.Background(), acc.ID)
			require.NoError(t, err)
			assert.True(t, got.Balance.Equal(decimal.NewFromInt(100)))
		})
	}
}

func TestStoreUpdateCommitsOnlyOnSuccess(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()
			a := insert(t, s, "alice", 100)
			b := insert(t, s, "bob", 50)

			err := s.Update(ctx, []int64{b.ID, a.ID}, func(tx usecase.StoreTx) error {
				if err := tx.SetBalance(a.ID, decimal.NewFromInt(70)); err != nil {
					return err
				}
				staged, err := tx.Get(a.ID)
				if err != nil {
					return err
				}
				assert.True(t, staged.Balance.Equal(decimal.NewFromInt(70)))
				return errors.New("abort")
			})
			assert.EqualError(t, err, "abort")

			got, err := s.GetByID(ctx, a.ID)
			require.NoError(t, err)
			assert.True(t, got.Balance.Equal(decimal.NewFromInt(100)), "aborted update must not be visible")

			err = s.Update(ctx, []int64{a.ID, b.ID}, func(tx usecase.StoreTx) error {
				if err := tx.SetBalance(a.ID, decimal.NewFromInt(70)); err != nil {
					return err
				}
				return tx.SetBalance(b.ID, decimal.NewFromInt(80))
			})
			require.NoError(t, err)

			got, _ = s.GetByID(ctx, a.ID)
			assert.True(t, got.Balance.Equal(decimal.NewFromInt(70)))
			got, _ = s.GetByID(ctx, b.ID)
			assert.True(t, got.Balance.Equal(decimal.NewFromInt(80)))
		})
	}
}

func TestStoreUpdateGuards(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			a := insert(t, s, "alice", 100)
			b := insert(t, s, "bob", 50)

			err := s.Update(context.Background(), []int64{a.ID, 42}, func(tx usecase.StoreTx) error {
				_, err := tx.Get(42)
				return err
			})
			assert.ErrorIs(t, err, domain.ErrNotFound)

			err = s.Update(context.Background(), []int64{a.ID}, func(tx usecase.StoreTx) error {
				return tx.SetBalance(b.ID, decimal.NewFromInt(1))
			})
			assert.Equal(t, domain.KindInternal, domain.KindOf(err))

			err = s.Update(context.Background(), []int64{a.ID}, func(tx usecase.StoreTx) error {
				return tx.SetBalance(a.ID, decimal.NewFromInt(-1))
			})
			assert.Equal(t, domain.KindInternal, domain.KindOf(err))
		})
	}
}

func TestStoreConcurrentUnique(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			const workers = 32

			var wg sync.WaitGroup
			var mu sync.Mutex
			wins := 0
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := s.Insert(context.Background(), domain.NewAccount("same", "hash", decimal.Zero), nil)
					if err == nil {
						mu.Lock()
						wins++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, 1, wins)
		})
	}
}

func TestStoreOppositeTransfersDoNotDeadlock(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			a := insert(t, s, "alice", 1000)
			b := insert(t, s, "bob", 1000)

			move := func(from, to int64) func(tx usecase.StoreTx) error {
				return func(tx usecase.StoreTx) error {
					src, err := tx.Get(from)
					if err != nil {
						return err
					}
					dst, err := tx.Get(to)
					if err != nil {
						return err
					}
					if err := tx.SetBalance(from, src.Balance.Sub(decimal.NewFromInt(1))); err != nil {
						return err
					}
					return tx.SetBalance(to, dst.Balance.Add(decimal.NewFromInt(1)))
				}
			}

			done := make(chan struct{})
			go func() {
				defer close(done)
				var wg sync.WaitGroup
				for i := 0; i < 200; i++ {
					wg.Add(2)
					go func() {
						defer wg.Done()
						assert.NoError(t, s.Update(context.Background(), []int64{a.ID, b.ID}, move(a.ID, b.ID)))
					}()
					go func() {
						defer wg.Done()
						assert.NoError(t, s.Update(context.Background(), []int64{b.ID, a.ID}, move(b.ID, a.ID)))
					}()
				}
				wg.Wait()
			}()

			select {
			case <-done:
			case <-time.After(10 * time.Second):
				t.Fatal("opposite transfers deadlocked")
			}

			ga, _ := s.GetByID(context.Background(), a.ID)
			gb, _ := s.GetByID(context.Background(), b.ID)
			assert.True(t, ga.Balance.Add(gb.Balance).Equal(decimal.NewFromInt(2000)))
			assert.True(t, ga.Balance.Equal(decimal.NewFromInt(1000)), fmt.Sprint(ga.Balance))
		})
	}
}

func TestLMAXStoreAfterShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewLMAXStore(4)
	s.Start(ctx)
	insert(t, s, "alice", 1)
	cancel()
	<-s.Done()

	_, err := s.GetByID(context.Background(), 1)
	assert.Equal(t, domain.KindInternal, domain.KindOf(err))
}

func TestLMAXStoreHonoursCallerContext(t *testing.T) {
	// 未啟動的 Store 不會處理請求，呼叫端的 ctx 到期即返回
	s := NewLMAXStore(1)
	s.requestChan <- &storeRequest{op: func() error { return nil }, Result: make(chan error, 1)}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.GetByID(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
