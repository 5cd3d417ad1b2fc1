package points

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestValidateChargeAmountBoundaries(test *testing.T) {
	test.Parallel()
	limits := DefaultLimits()
	testCases := []struct {
		name    string
		amount  int64
		wantErr error
	}{
		{name: "minimum", amount: 1_000},
		{name: "below minimum", amount: 999, wantErr: ErrAmountTooSmall},
		{name: "maximum", amount: 100_000},
		{name: "above maximum", amount: 100_001, wantErr: ErrAmountTooLarge},
		{name: "not aligned", amount: 1_010, wantErr: ErrAmountNotAligned},
		{name: "aligned", amount: 54_300},
		{name: "too large wins over alignment", amount: 100_050, wantErr: ErrAmountTooLarge},
		{name: "too small wins over alignment", amount: 950, wantErr: ErrAmountTooSmall},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			err := limits.ValidateChargeAmount(Amount(testCase.amount))
			if testCase.wantErr == nil {
				if err != nil {
					test.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, testCase.wantErr) {
				test.Fatalf("expected %v, got %v", testCase.wantErr, err)
			}
		})
	}
}

func TestValidateTotalPointsBoundary(test *testing.T) {
	test.Parallel()
	limits := DefaultLimits()
	if err := limits.ValidateTotalPoints(900_000, 100_000); err != nil {
		test.Fatalf("charge reaching the ceiling must succeed: %v", err)
	}
	err := limits.ValidateTotalPoints(900_001, 100_000)
	if !errors.Is(err, ErrBalanceCeilingExceeded) {
		test.Fatalf("expected ErrBalanceCeilingExceeded, got %v", err)
	}
	var limitError LimitError
	if !errors.As(err, &limitError) || limitError.Balance != 900_001 || limitError.Limit != 1_000_000 {
		test.Fatalf("unexpected limit details: %+v", limitError)
	}
}

func TestValidateTotalPointsDoesNotOverflow(test *testing.T) {
	test.Parallel()
	limits := Limits{MaxAmount: 100_000, MinAmount: 1_000, AmountUnit: 100, MaxTotalPoints: math.MaxInt64}
	err := limits.ValidateTotalPoints(math.MaxInt64-500, 1_000)
	if !errors.Is(err, ErrBalanceCeilingExceeded) {
		test.Fatalf("expected ErrBalanceCeilingExceeded, got %v", err)
	}
	if err := limits.ValidateTotalPoints(math.MaxInt64-1_000, 1_000); err != nil {
		test.Fatalf("charge reaching the ceiling must succeed: %v", err)
	}
}

func TestChargeNearLargestCeilingKeepsBalanceNonNegative(test *testing.T) {
	test.Parallel()
	limits := Limits{MaxAmount: 100_000, MinAmount: 1_000, AmountUnit: 100, MaxTotalPoints: maxTotalPointsCeiling}
	store := newStubStore(test)
	userID := mustUserID(test, 1)
	store.seed(test, userID, maxTotalPointsCeiling-500)
	service := mustNewService(test, store, WithLimits(limits))

	userPoint, err := service.Charge(context.Background(), userID, mustAmount(test, 1_000))
	if !errors.Is(err, ErrBalanceCeilingExceeded) {
		test.Fatalf("expected ErrBalanceCeilingExceeded, got point=%d err=%v", userPoint.Point, err)
	}
	balance, err := service.Balance(context.Background(), userID)
	if err != nil {
		test.Fatalf("balance: %v", err)
	}
	if balance.Point != Point(maxTotalPointsCeiling-500) {
		test.Fatalf("expected balance to stay untouched, got %d", balance.Point)
	}
}

func TestValidateSufficientBalanceBoundary(test *testing.T) {
	test.Parallel()
	limits := DefaultLimits()
	if err := limits.ValidateSufficientBalance(5_000, 5_000); err != nil {
		test.Fatalf("use of the full balance must succeed: %v", err)
	}
	if err := limits.ValidateSufficientBalance(5_000, 5_001); !errors.Is(err, ErrInsufficientBalance) {
		test.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestLimitsValidate(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name    string
		limits  Limits
		wantErr bool
	}{
		{name: "defaults", limits: DefaultLimits()},
		{name: "zero unit", limits: Limits{MaxAmount: 10, MinAmount: 1, AmountUnit: 0, MaxTotalPoints: 100}, wantErr: true},
		{name: "min above max", limits: Limits{MaxAmount: 10, MinAmount: 20, AmountUnit: 1, MaxTotalPoints: 100}, wantErr: true},
		{name: "max above ceiling", limits: Limits{MaxAmount: 200, MinAmount: 1, AmountUnit: 1, MaxTotalPoints: 100}, wantErr: true},
		{name: "no aligned amount", limits: Limits{MaxAmount: 1_099, MinAmount: 1_050, AmountUnit: 100, MaxTotalPoints: 10_000}, wantErr: true},
		{name: "ceiling above exact integer range", limits: Limits{MaxAmount: 10, MinAmount: 1, AmountUnit: 1, MaxTotalPoints: math.MaxInt64}, wantErr: true},
		{name: "largest ceiling", limits: Limits{MaxAmount: 10, MinAmount: 1, AmountUnit: 1, MaxTotalPoints: maxTotalPointsCeiling}},
		{name: "unaligned min", limits: Limits{MaxAmount: 2_000, MinAmount: 1_050, AmountUnit: 100, MaxTotalPoints: 10_000}},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			err := testCase.limits.Validate()
			if testCase.wantErr && !errors.Is(err, ErrInvalidLimits) {
				test.Fatalf("expected ErrInvalidLimits, got %v", err)
			}
			if !testCase.wantErr && err != nil {
				test.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
