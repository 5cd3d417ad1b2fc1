package points

const (
	operationCharge = "charge"
	operationUse    = "use"

	operationStatusOK       = "ok"
	operationStatusRejected = "rejected"
	operationStatusError    = "error"

	defaultMaxAmount      int64 = 100_000
	defaultMinAmount      int64 = 1_000
	defaultAmountUnit     int64 = 100
	defaultMaxTotalPoints int64 = 1_000_000
	// Balances stay exactly representable as JSON numbers.
	maxTotalPointsCeiling int64 = 1 << 53

	errorOperationStore = "store"
)
