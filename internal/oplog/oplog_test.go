package oplog

import (
	"context"
	"errors"
	"testing"

	"github.com/MarkoPoloResearchLab/points/internal/store/memstore"
	"github.com/MarkoPoloResearchLab/points/pkg/points"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogOperationLevels(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name      string
		entry     points.OperationLog
		wantLevel zapcore.Level
		wantError bool
	}{
		{
			name:      "ok",
			entry:     points.OperationLog{Operation: "charge", Amount: 1_000, Balance: 1_000, Status: points.StatusOK},
			wantLevel: zapcore.InfoLevel,
		},
		{
			name:      "rejected",
			entry:     points.OperationLog{Operation: "use", Amount: 1_000, Status: points.StatusRejected, Error: points.ErrInsufficientBalance},
			wantLevel: zapcore.WarnLevel,
			wantError: true,
		},
		{
			name:      "error",
			entry:     points.OperationLog{Operation: "charge", Amount: 1_000, Status: points.StatusError, Error: errors.New("disk full")},
			wantLevel: zapcore.ErrorLevel,
			wantError: true,
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			core, logs := observer.New(zapcore.DebugLevel)
			New(zap.New(core)).LogOperation(context.Background(), testCase.entry)

			entries := logs.All()
			if len(entries) != 1 {
				test.Fatalf("expected 1 entry, got %d", len(entries))
			}
			if entries[0].Level != testCase.wantLevel {
				test.Fatalf("expected level %s, got %s", testCase.wantLevel, entries[0].Level)
			}
			fields := entries[0].ContextMap()
			if fields["operation"] != testCase.entry.Operation {
				test.Fatalf("unexpected operation field %v", fields["operation"])
			}
			if _, ok := fields["error"]; ok != testCase.wantError {
				test.Fatalf("error field presence = %v, want %v", ok, testCase.wantError)
			}
		})
	}
}

func TestLogOperationIncludesRequestID(test *testing.T) {
	test.Parallel()
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := WithRequestID(context.Background(), "request-1")
	New(zap.New(core)).LogOperation(ctx, points.OperationLog{Operation: "charge", Status: points.StatusOK})

	if logs.FilterField(zap.String("request_id", "request-1")).Len() != 1 {
		test.Fatalf("expected request id field, got %v", logs.All())
	}
}

func TestServiceEmitsThroughLogger(test *testing.T) {
	test.Parallel()
	core, logs := observer.New(zapcore.InfoLevel)
	service, err := points.NewService(memstore.New(), func() int64 { return 1 }, points.WithOperationLogger(New(zap.New(core))))
	if err != nil {
		test.Fatalf("service: %v", err)
	}
	userID, err := points.NewUserID(1)
	if err != nil {
		test.Fatalf("user id: %v", err)
	}
	if _, err := service.Charge(context.Background(), userID, 5_000); err != nil {
		test.Fatalf("charge: %v", err)
	}
	if _, err := service.Use(context.Background(), userID, 10_000); !errors.Is(err, points.ErrInsufficientBalance) {
		test.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	if logs.FilterMessage("point operation").Len() != 1 {
		test.Fatalf("expected one ok entry, got %v", logs.All())
	}
	rejected := logs.FilterMessage("point operation rejected").All()
	if len(rejected) != 1 || rejected[0].ContextMap()["balance"] != nil {
		test.Fatalf("expected one rejection without balance, got %v", rejected)
	}
}
