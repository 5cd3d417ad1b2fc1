package oplog

import (
	"context"

	"github.com/MarkoPoloResearchLab/points/pkg/points"
	"go.uber.org/zap"
)

type requestIDKey struct{}

// WithRequestID attaches a request id that LogOperation adds to every entry.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the request id stored by WithRequestID.
func RequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(requestIDKey{}).(string)
	return requestID, ok && requestID != ""
}

// Logger implements points.OperationLogger on zap.
type Logger struct {
	logger *zap.Logger
}

// New returns a Logger writing to logger; a nil logger discards entries.
func New(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{logger: logger}
}

func (operationLogger *Logger) LogOperation(ctx context.Context, entry points.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.Int64("user_id", entry.UserID.Int64()),
		zap.Int64("amount", entry.Amount.Int64()),
		zap.String("status", entry.Status),
	}
	if requestID, ok := RequestID(ctx); ok {
		fields = append(fields, zap.String("request_id", requestID))
	}
	switch entry.Status {
	case points.StatusOK:
		fields = append(fields, zap.Int64("balance", entry.Balance.Int64()))
		operationLogger.logger.Info("point operation", fields...)
	case points.StatusRejected:
		operationLogger.logger.Warn("point operation rejected", append(fields, zap.Error(entry.Error))...)
	default:
		operationLogger.logger.Error("point operation failed", append(fields, zap.Error(entry.Error))...)
	}
}
