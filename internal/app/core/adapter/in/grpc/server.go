package grpc

import (
	"context"
	"errors"
	"math"

	"go.uber.org/zap"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
)

// Ledger gRPC server 需要的帳務操作
type Ledger interface {
	CreateAccount(ctx context.Context, raw []byte) (domain.Snapshot, error)
	Authenticate(ctx context.Context, raw []byte) (string, error)
	Deposit(ctx context.Context, raw []byte) (domain.Snapshot, error)
	Withdraw(ctx context.Context, raw []byte) (domain.Snapshot, error)
	Transfer(ctx context.Context, raw []byte) (domain.Snapshot, domain.Snapshot, error)
	GetAccount(ctx context.Context, id int64) (domain.Snapshot, error)
}

// TokenIssuer 發行 access token
type TokenIssuer interface {
	Issue(name string) (string, error)
}

type GrpcServer struct {
	core   Ledger
	tokens TokenIssuer
	logger *zap.Logger
}

func NewGrpcServer(core Ledger, tokens TokenIssuer, logger *zap.Logger) *GrpcServer {
	return &GrpcServer{
		core:   core,
		tokens: tokens,
		logger: logger,
	}
}

func (s *GrpcServer) CreateAccount(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	raw, err := protojson.Marshal(in)
	if err != nil {
		return nil, s.toStatus(MethodCreateAccount, domain.Internal(err))
	}
	acc, err := s.core.CreateAccount(ctx, raw)
	if err != nil {
		return nil, s.toStatus(MethodCreateAccount, err)
	}
	return s.reply(MethodCreateAccount, accountFields(acc))
}

func (s *GrpcServer) Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	raw, err := protojson.Marshal(in)
	if err != nil {
		return nil, s.toStatus(MethodLogin, domain.Internal(err))
	}
	name, err := s.core.Authenticate(ctx, raw)
	if err != nil {
		return nil, s.toStatus(MethodLogin, err)
	}
	token, err := s.tokens.Issue(name)
	if err != nil {
		return nil, s.toStatus(MethodLogin, domain.Internal(err))
	}
	return s.reply(MethodLogin, map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
	})
}

func (s *GrpcServer) Deposit(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	raw, err := protojson.Marshal(in)
	if err != nil {
		return nil, s.toStatus(MethodDeposit, domain.Internal(err))
	}
	acc, err := s.core.Deposit(ctx, raw)
	if err != nil {
		return nil, s.toStatus(MethodDeposit, err)
	}
	return s.reply(MethodDeposit, accountFields(acc))
}

func (s *GrpcServer) Withdraw(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	raw, err := protojson.Marshal(in)
	if err != nil {
		return nil, s.toStatus(MethodWithdraw, domain.Internal(err))
	}
	acc, err := s.core.Withdraw(ctx, raw)
	if err != nil {
		return nil, s.toStatus(MethodWithdraw, err)
	}
	return s.reply(MethodWithdraw, accountFields(acc))
}

// Transfer 回傳 {"source": 轉出帳戶, "destination": 轉入帳戶}
func (s *GrpcServer) Transfer(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	raw, err := protojson.Marshal(in)
	if err != nil {
		return nil, s.toStatus(MethodTransfer, domain.Internal(err))
	}
	src, dst, err := s.core.Transfer(ctx, raw)
	if err != nil {
		return nil, s.toStatus(MethodTransfer, err)
	}
	return s.reply(MethodTransfer, map[string]any{
		"source":      accountFields(src),
		"destination": accountFields(dst),
	})
}

func (s *GrpcServer) GetAccount(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := accountID(in)
	if err != nil {
		return nil, s.toStatus(MethodGetAccount, err)
	}
	acc, err := s.core.GetAccount(ctx, id)
	if err != nil {
		return nil, s.toStatus(MethodGetAccount, err)
	}
	return s.reply(MethodGetAccount, accountFields(acc))
}

func (s *GrpcServer) reply(method string, fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, s.toStatus(method, domain.Internal(err))
	}
	return out, nil
}

// toStatus 將帳務錯誤轉為 gRPC status，內部錯誤只記 log 不回傳細節
func (s *GrpcServer) toStatus(method string, err error) error {
	var e *domain.Error
	if !errors.As(err, &e) {
		e = domain.Internal(err)
	}
	switch e.Kind {
	case domain.KindInvalidData:
		st := status.New(codes.InvalidArgument, e.Error())
		if len(e.Violations) == 0 {
			return st.Err()
		}
		br := &errdetails.BadRequest{}
		for _, v := range e.Violations {
			br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{
				Field:       v.Field,
				Description: v.Message,
			})
		}
		if detailed, derr := st.WithDetails(br); derr == nil {
			st = detailed
		}
		return st.Err()
	case domain.KindNotFound:
		return status.Error(codes.NotFound, e.Error())
	case domain.KindInsufficientFunds:
		return status.Error(codes.FailedPrecondition, e.Error())
	case domain.KindAuthenticationFailed:
		return status.Error(codes.Unauthenticated, e.Error())
	default:
		s.logger.Error("ledger internal error",
			zap.String("method", method),
			zap.NamedError("cause", e.Unwrap()),
		)
		return status.Error(codes.Internal, e.Error())
	}
}

// accountFields 餘額以十進位字串回傳，避免 double 誤差
func accountFields(acc domain.Snapshot) map[string]any {
	return map[string]any{
		"id":      acc.ID,
		"name":    acc.Name,
		"balance": acc.Balance.String(),
	}
}

func accountID(in *structpb.Struct) (int64, error) {
	v, ok := in.GetFields()["account_id"]
	if !ok {
		return 0, domain.InvalidData("", domain.Violation{Field: "account_id", Message: "is required"})
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue != math.Trunc(n.NumberValue) || math.Abs(n.NumberValue) > 1<<53 {
		return 0, domain.InvalidData("", domain.Violation{Field: "account_id", Message: "must be an integer"})
	}
	return int64(n.NumberValue), nil
}
