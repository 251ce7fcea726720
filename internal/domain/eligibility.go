package domain

// EligibilityRecord is a read-only per-currency snapshot loaded once per
// cycle from the eligibility table. The orchestrator never mutates it.
type EligibilityRecord struct {
	Currency          string
	DepositAddress    DepositAddress
	Unavailable       bool // operator-flagged suspicious/unavailable
	TradeSuspended    bool // spot trading halted on the destination exchange
	WithdrawSuspended bool // withdrawals halted on the source exchange
	Depositable       bool // deposits enabled on the destination exchange
}

// EligibilityTable maps currency symbol to its eligibility snapshot.
type EligibilityTable map[string]EligibilityRecord
