package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v3"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	grpc_adapter "github.com/JoeShih716/go-account-ledger/internal/app/core/adapter/in/grpc"
	grpcpool "github.com/JoeShih716/go-account-ledger/pkg/grpc"
)

func main() {
	cmd := &cli.Command{
		Name:  "ledger_client",
		Usage: "gRPC client for the account ledger",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: "localhost:50051", Usage: "ledger gRPC address"},
			&cli.StringFlag{Name: "name", Value: "bench", Usage: "account name"},
			&cli.StringFlag{Name: "password", Value: "bench-password", Usage: "account password"},
			&cli.DurationFlag{Name: "timeout", Value: 120 * time.Second, Usage: "overall timeout"},
		},
		Commands: []*cli.Command{
			benchCommand(),
			balanceCommand(),
		},
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

// session 已登入的 client，accountID 由各 command 指定
type session struct {
	pool      *grpcpool.Pool
	client    *grpc_adapter.LedgerServiceClient
	accountID int64
}

// connect 建立帳戶 (已存在則略過) 並登入，之後的請求都會帶上 token
func connect(ctx context.Context, cmd *cli.Command) (*session, error) {
	var token atomic.Value
	token.Store("")
	pool := grpcpool.NewPool(grpcpool.WithInterceptor(grpcpool.BearerToken(func() string {
		return token.Load().(string)
	})))
	conn, err := pool.GetConnection(cmd.String("addr"))
	if err != nil {
		return nil, err
	}
	client := grpc_adapter.NewLedgerServiceClient(conn)

	name, password := cmd.String("name"), cmd.String("password")
	in, err := structpb.NewStruct(map[string]any{"name": name, "password": password, "balance": 0})
	if err != nil {
		return nil, err
	}
	if _, err := client.CreateAccount(ctx, in); err != nil && status.Code(err) != codes.InvalidArgument {
		_ = pool.Close()
		return nil, fmt.Errorf("create account: %w", err)
	}

	in, err = structpb.NewStruct(map[string]any{"name": name, "password": password})
	if err != nil {
		return nil, err
	}
	out, err := client.Login(ctx, in)
	if err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("login: %w", err)
	}
	token.Store(out.GetFields()["access_token"].GetStringValue())
	return &session{pool: pool, client: client}, nil
}

func (s *session) balance(ctx context.Context) (decimal.Decimal, error) {
	in, err := structpb.NewStruct(map[string]any{"account_id": s.accountID})
	if err != nil {
		return decimal.Zero, err
	}
	out, err := s.client.GetAccount(ctx, in)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(out.GetFields()["balance"].GetStringValue())
}

func benchCommand() *cli.Command {
	return &cli.Command{
		Name:  "bench",
		Usage: "Send concurrent deposits and verify the final balance",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "account", Value: 1, Usage: "account id to deposit into"},
			&cli.IntFlag{Name: "total", Value: 100000, Usage: "number of deposits"},
			&cli.IntFlag{Name: "concurrency", Value: 1000, Usage: "in-flight requests"},
			&cli.StringFlag{Name: "amount", Value: "1", Usage: "amount per deposit"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
			defer cancel()

			amount, err := decimal.NewFromString(cmd.String("amount"))
			if err != nil {
				return fmt.Errorf("invalid amount: %w", err)
			}
			s, err := connect(ctx, cmd)
			if err != nil {
				return err
			}
			defer s.pool.Close()
			s.accountID = int64(cmd.Int("account"))

			before, err := s.balance(ctx)
			if err != nil {
				return fmt.Errorf("get balance: %w", err)
			}

			totalCount := int(cmd.Int("total"))
			sem := make(chan struct{}, int(cmd.Int("concurrency")))
			var wg sync.WaitGroup
			var succeeded atomic.Int64
			startTime := time.Now()

			for i := 0; i < totalCount; i++ {
				sem <- struct{}{}
				wg.Add(1)
				go func(idx int) {
					defer wg.Done()
					defer func() { <-sem }()

					in, err := structpb.NewStruct(map[string]any{
						"ref_id":     uuid.NewString(),
						"account_id": s.accountID,
						"amount":     amount.String(),
					})
					if err == nil {
						_, err = s.client.Deposit(ctx, in)
					}
					if err != nil {
						if idx%10000 == 0 {
							log.Printf("Deposit %d failed: %v", idx, err)
						}
						return
					}
					succeeded.Add(1)
				}(i)
			}
			wg.Wait()

			elapsed := time.Since(startTime)
			fmt.Printf("Completed %d requests (%d ok) in %v\n", totalCount, succeeded.Load(), elapsed)
			fmt.Printf("TPS: %.2f\n", float64(totalCount)/elapsed.Seconds())

			after, err := s.balance(ctx)
			if err != nil {
				return fmt.Errorf("get balance: %w", err)
			}
			expected := before.Add(amount.Mul(decimal.NewFromInt(succeeded.Load())))
			fmt.Printf("Balance: %s -> %s (expected %s)\n", before, after, expected)
			if !after.Equal(expected) {
				return fmt.Errorf("balance mismatch: got %s, expected %s", after, expected)
			}
			return nil
		},
	}
}

func balanceCommand() *cli.Command {
	return &cli.Command{
		Name:      "balance",
		Usage:     "Print the balance of an account",
		ArgsUsage: "<account-id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
			defer cancel()

			var id int64 = 1
			if cmd.NArg() > 0 {
				if _, err := fmt.Sscan(cmd.Args().Get(0), &id); err != nil {
					return fmt.Errorf("invalid account id %q", cmd.Args().Get(0))
				}
			}
			s, err := connect(ctx, cmd)
			if err != nil {
				return err
			}
			defer s.pool.Close()
			s.accountID = id

			balance, err := s.balance(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("account %d balance: %s\n", id, balance)
			return nil
		},
	}
}
