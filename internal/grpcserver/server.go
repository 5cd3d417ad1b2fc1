package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/MarkoPoloResearchLab/points/pkg/points"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "points.v1.PointService"

	methodGetBalance = "/" + ServiceName + "/GetBalance"
	methodGetHistory = "/" + ServiceName + "/GetHistory"
	methodCharge     = "/" + ServiceName + "/Charge"
	methodUse        = "/" + ServiceName + "/Use"

	fieldUserID          = "user_id"
	fieldAmount          = "amount"
	fieldID              = "id"
	fieldPoint           = "point"
	fieldUpdatedAtMillis = "updated_at_millis"
	fieldType            = "type"
	fieldTimestampMillis = "timestamp_millis"
	fieldEntries         = "entries"

	errorInvalidUserID           = "invalid_user_id"
	errorInvalidAmount           = "invalid_amount"
	errorAmountTooLarge          = "amount_too_large"
	errorAmountTooSmall          = "amount_too_small"
	errorAmountNotAligned        = "amount_not_aligned"
	errorBalanceCeilingExceeded  = "balance_ceiling_exceeded"
	errorInsufficientBalance     = "insufficient_balance"
	errorStorageUnavailable      = "storage_unavailable"
	errorRequestDeadlineExceeded = "deadline_exceeded"

	// Struct numbers are float64; larger integers lose precision.
	maxExactInteger = 1 << 53
)

// PointServiceServer is the handler contract of points.v1.PointService.
type PointServiceServer interface {
	GetBalance(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error)
	GetHistory(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error)
	Charge(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error)
	Use(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes points.v1.PointService for grpc.ServiceRegistrar.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PointServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetBalance", Handler: unaryHandler(methodGetBalance, PointServiceServer.GetBalance)},
		{MethodName: "GetHistory", Handler: unaryHandler(methodGetHistory, PointServiceServer.GetHistory)},
		{MethodName: "Charge", Handler: unaryHandler(methodCharge, PointServiceServer.Charge)},
		{MethodName: "Use", Handler: unaryHandler(methodUse, PointServiceServer.Use)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "points/v1/points.proto",
}

type unaryMethod func(server PointServiceServer, ctx context.Context, request *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, method unaryMethod) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		request := new(structpb.Struct)
		if err := dec(request); err != nil {
			return nil, err
		}
		server := srv.(PointServiceServer)
		if interceptor == nil {
			return method(server, ctx, request)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, request any) (any, error) {
			return method(server, ctx, request.(*structpb.Struct))
		}
		return interceptor(ctx, request, info, handler)
	}
}

// PointServer exposes the point service over gRPC.
type PointServer struct {
	pointService *points.Service
}

// NewPointServer constructs a gRPC handler for the point service.
func NewPointServer(pointService *points.Service) *PointServer {
	return &PointServer{pointService: pointService}
}

// Register installs the point service and the standard health service on registrar.
func Register(registrar grpc.ServiceRegistrar, pointServer *PointServer) *health.Server {
	registrar.RegisterService(&ServiceDesc, pointServer)
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(registrar, healthServer)
	return healthServer
}

// NewServer builds a grpc.Server with the point service, health checks and zap request logging.
func NewServer(pointService *points.Service, logger *zap.Logger) (*grpc.Server, *health.Server) {
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(LoggingInterceptor(logger)))
	healthServer := Register(grpcServer, NewPointServer(pointService))
	return grpcServer, healthServer
}

func (server *PointServer) GetBalance(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDField(request)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	userPoint, err := server.pointService.Balance(ctx, userID)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	return userPointStruct(userPoint)
}

func (server *PointServer) GetHistory(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDField(request)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	histories, err := server.pointService.History(ctx, userID)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	entries := make([]any, 0, len(histories))
	for _, history := range histories {
		entries = append(entries, map[string]any{
			fieldID:              history.ID,
			fieldUserID:          history.UserID.Int64(),
			fieldAmount:          history.Amount.Int64(),
			fieldType:            history.Type.String(),
			fieldTimestampMillis: history.TimestampMillis,
		})
	}
	response, err := structpb.NewStruct(map[string]any{fieldEntries: entries})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return response, nil
}

func (server *PointServer) Charge(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	userID, amount, err := mutationFields(request)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	userPoint, err := server.pointService.Charge(ctx, userID, amount)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	return userPointStruct(userPoint)
}

func (server *PointServer) Use(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	userID, amount, err := mutationFields(request)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	userPoint, err := server.pointService.Use(ctx, userID, amount)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	return userPointStruct(userPoint)
}

func userIDField(request *structpb.Struct) (points.UserID, error) {
	raw, err := integerField(request, fieldUserID)
	if err != nil {
		return points.UserID{}, fmt.Errorf("%w: %w", points.ErrInvalidUserID, err)
	}
	return points.NewUserID(raw)
}

func mutationFields(request *structpb.Struct) (points.UserID, points.Amount, error) {
	userID, err := userIDField(request)
	if err != nil {
		return points.UserID{}, 0, err
	}
	raw, err := integerField(request, fieldAmount)
	if err != nil {
		return points.UserID{}, 0, fmt.Errorf("%w: %w", points.ErrInvalidAmount, err)
	}
	amount, err := points.NewAmount(raw)
	if err != nil {
		return points.UserID{}, 0, err
	}
	return userID, amount, nil
}

func integerField(request *structpb.Struct, name string) (int64, error) {
	value, ok := request.GetFields()[name]
	if !ok {
		return 0, fmt.Errorf("missing field %q", name)
	}
	number, ok := value.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("field %q is not a number", name)
	}
	raw := number.NumberValue
	if raw != math.Trunc(raw) || math.Abs(raw) > maxExactInteger {
		return 0, fmt.Errorf("field %q is not an exact integer", name)
	}
	return int64(raw), nil
}

func userPointStruct(userPoint points.UserPoint) (*structpb.Struct, error) {
	response, err := structpb.NewStruct(map[string]any{
		fieldUserID:          userPoint.UserID.Int64(),
		fieldPoint:           userPoint.Point.Int64(),
		fieldUpdatedAtMillis: userPoint.UpdatedAtMillis,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return response, nil
}

func mapToGRPCError(source error) error {
	if errors.Is(source, points.ErrInvalidUserID) {
		return status.Error(codes.InvalidArgument, errorInvalidUserID)
	}
	if errors.Is(source, points.ErrInvalidAmount) {
		return status.Error(codes.InvalidArgument, errorInvalidAmount)
	}
	if errors.Is(source, points.ErrAmountTooLarge) {
		return status.Error(codes.InvalidArgument, errorAmountTooLarge)
	}
	if errors.Is(source, points.ErrAmountTooSmall) {
		return status.Error(codes.InvalidArgument, errorAmountTooSmall)
	}
	if errors.Is(source, points.ErrAmountNotAligned) {
		return status.Error(codes.InvalidArgument, errorAmountNotAligned)
	}
	if errors.Is(source, points.ErrBalanceCeilingExceeded) {
		return status.Error(codes.FailedPrecondition, errorBalanceCeilingExceeded)
	}
	if errors.Is(source, points.ErrInsufficientBalance) {
		return status.Error(codes.FailedPrecondition, errorInsufficientBalance)
	}
	if errors.Is(source, context.DeadlineExceeded) {
		return status.Error(codes.DeadlineExceeded, errorRequestDeadlineExceeded)
	}
	if errors.Is(source, points.ErrStorageUnavailable) {
		return status.Error(codes.Unavailable, errorStorageUnavailable)
	}
	return status.Error(codes.Internal, source.Error())
}
