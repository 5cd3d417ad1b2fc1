package points

import (
	"context"

	"github.com/MarkoPoloResearchLab/points/internal/keylock"
)

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a point operation.
type OperationLog struct {
	Operation string
	UserID    UserID
	Amount    Amount
	Balance   Point
	Status    string
	Error     error
}

// WithOperationLogger wires a logger that receives callbacks for every mutation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithLimits replaces the default charge limits.
func WithLimits(limits Limits) ServiceOption {
	return func(service *Service) {
		service.limits = limits
	}
}

// WithIdleLockEviction drops a user's lock once no call holds or waits on it.
func WithIdleLockEviction() ServiceOption {
	return func(service *Service) {
		service.locks = keylock.NewEvicting[int64]()
	}
}

// Status values reported in OperationLog.Status.
const (
	StatusOK       = operationStatusOK
	StatusRejected = operationStatusRejected
	StatusError    = operationStatusError
)
