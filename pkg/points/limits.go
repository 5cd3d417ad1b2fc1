package points

import "fmt"

// Limits bounds charge amounts and total balances.
type Limits struct {
	MaxAmount      int64
	MinAmount      int64
	AmountUnit     int64
	MaxTotalPoints int64
}

// DefaultLimits returns the standard point policy.
func DefaultLimits() Limits {
	return Limits{
		MaxAmount:      defaultMaxAmount,
		MinAmount:      defaultMinAmount,
		AmountUnit:     defaultAmountUnit,
		MaxTotalPoints: defaultMaxTotalPoints,
	}
}

// Validate rejects limits no charge could satisfy.
func (limits Limits) Validate() error {
	if limits.MaxAmount <= 0 || limits.MinAmount <= 0 || limits.AmountUnit <= 0 || limits.MaxTotalPoints <= 0 {
		return fmt.Errorf("%w: all limits must be positive", ErrInvalidLimits)
	}
	if limits.MaxTotalPoints > maxTotalPointsCeiling {
		return fmt.Errorf("%w: max total points %d exceeds %d", ErrInvalidLimits, limits.MaxTotalPoints, maxTotalPointsCeiling)
	}
	if limits.MinAmount > limits.MaxAmount {
		return fmt.Errorf("%w: min amount %d exceeds max amount %d", ErrInvalidLimits, limits.MinAmount, limits.MaxAmount)
	}
	if limits.MaxAmount > limits.MaxTotalPoints {
		return fmt.Errorf("%w: max amount %d exceeds max total points %d", ErrInvalidLimits, limits.MaxAmount, limits.MaxTotalPoints)
	}
	alignedMax := limits.MaxAmount - limits.MaxAmount%limits.AmountUnit
	if alignedMax < limits.MinAmount {
		return fmt.Errorf("%w: no multiple of %d between %d and %d", ErrInvalidLimits, limits.AmountUnit, limits.MinAmount, limits.MaxAmount)
	}
	return nil
}

// ValidateChargeAmount checks the upper bound, then the lower bound, then the unit.
func (limits Limits) ValidateChargeAmount(amount Amount) error {
	if amount.Int64() > limits.MaxAmount {
		return LimitError{Kind: ErrAmountTooLarge, Amount: amount, Limit: limits.MaxAmount}
	}
	if amount.Int64() < limits.MinAmount {
		return LimitError{Kind: ErrAmountTooSmall, Amount: amount, Limit: limits.MinAmount}
	}
	if amount.Int64()%limits.AmountUnit != 0 {
		return LimitError{Kind: ErrAmountNotAligned, Amount: amount, Limit: limits.AmountUnit}
	}
	return nil
}

// ValidateTotalPoints allows a charge that lands exactly on the ceiling.
func (limits Limits) ValidateTotalPoints(current Point, amount Amount) error {
	if current.Int64() > limits.MaxTotalPoints-amount.Int64() {
		return LimitError{Kind: ErrBalanceCeilingExceeded, Amount: amount, Balance: current, Limit: limits.MaxTotalPoints}
	}
	return nil
}

// ValidateSufficientBalance allows a use that drains the balance to zero.
func (limits Limits) ValidateSufficientBalance(current Point, amount Amount) error {
	if current.Int64() < amount.Int64() {
		return LimitError{Kind: ErrInsufficientBalance, Amount: amount, Balance: current, Limit: current.Int64()}
	}
	return nil
}
