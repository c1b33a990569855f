package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	grpc_adapter "github.com/JoeShih716/go-account-ledger/internal/app/core/adapter/in/grpc"
	rest_adapter "github.com/JoeShih716/go-account-ledger/internal/app/core/adapter/in/rest"
	memory_adapter "github.com/JoeShih716/go-account-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/credential"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-account-ledger/internal/config"
	"github.com/JoeShih716/go-account-ledger/pkg/journal"
	"github.com/JoeShih716/go-account-ledger/pkg/logger"
	"github.com/JoeShih716/go-account-ledger/pkg/token"
)

func main() {
	// 1. 載入設定
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. 初始化 logger
	zl, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. 初始化帳戶儲存
	storeCtx, stopStore := context.WithCancel(context.Background())
	store, storeDone := newStore(storeCtx, cfg.Ledger)
	zl.Info("account store ready", zap.String("engine", string(cfg.Ledger.Engine)))

	// 4. 初始化 journal (可選)
	var opts []usecase.Option
	if cfg.Journal.Path != "" {
		var jopts []journal.Option
		if cfg.Journal.NoSync {
			jopts = append(jopts, journal.WithoutSync())
		}
		j, err := journal.Open(cfg.Journal.Path, jopts...)
		if err != nil {
			zl.Fatal("Failed to open journal", zap.Error(err))
		}
		// store 停止後才關閉，確保最後一筆交易已寫入
		defer func() {
			if err := j.Close(); err != nil {
				zl.Error("Failed to close journal", zap.Error(err))
			}
		}()
		opts = append(opts, usecase.WithJournal(j))
		zl.Info("journal enabled", zap.String("path", cfg.Journal.Path))
	}

	// 5. 初始化 UseCase
	checker, err := credential.NewChecker(cfg.Auth.BcryptCost)
	if err != nil {
		zl.Fatal("Failed to init credential checker", zap.Error(err))
	}
	coreUseCase := usecase.NewCoreUseCase(store, checker, opts...)

	tokens, err := token.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		zl.Fatal("Failed to init token issuer", zap.Error(err))
	}

	// 6. 啟動 gRPC Server
	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		zl.Fatal("failed to listen", zap.String("addr", cfg.GRPC.Addr), zap.Error(err))
	}
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		grpc_adapter.LoggingInterceptor(zl),
		grpc_adapter.RecoveryInterceptor(zl),
		grpc_adapter.AuthInterceptor(tokens),
	))
	grpc_adapter.RegisterLedgerServiceServer(grpcServer, grpc_adapter.NewGrpcServer(coreUseCase, tokens, zl))
	if cfg.GRPC.Reflection {
		reflection.Register(grpcServer)
	}
	go func() {
		zl.Info("Starting gRPC server", zap.String("addr", cfg.GRPC.Addr))
		if err := grpcServer.Serve(lis); err != nil {
			zl.Error("gRPC server stopped", zap.Error(err))
			stop()
		}
	}()

	// 7. 啟動 HTTP Server
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := rest_adapter.NewRouter(rest_adapter.NewHandler(coreUseCase, tokens, zl), tokens, zl)
	httpServer := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: router,
	}
	go func() {
		zl.Info("Starting HTTP server", zap.String("addr", cfg.HTTP.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("HTTP server stopped", zap.Error(err))
			stop()
		}
	}()

	// Graceful Shutdown
	<-ctx.Done()
	zl.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zl.Error("HTTP shutdown failed", zap.Error(err))
	}
	grpcServer.GracefulStop()

	// 所有請求結束後才停止 store
	stopStore()
	<-storeDone
	zl.Info("Server exited")
}

// newStore 依設定建立帳戶儲存，回傳的 channel 在 store 完全停止後關閉
func newStore(ctx context.Context, cfg config.LedgerConfig) (usecase.AccountStore, <-chan struct{}) {
	switch cfg.Engine {
	case config.EngineLMAX:
		s := memory_adapter.NewLMAXStore(cfg.LMAXBuffer)
		s.Start(ctx)
		return s, s.Done()
	default:
		done := make(chan struct{})
		close(done)
		return memory_adapter.NewMutexStore(), done
	}
}
