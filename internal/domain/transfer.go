package domain

// WithdrawalStatus tracks a withdrawal ticket through its lifecycle. The
// transition order is monotonic: Pending may move to AwaitingDeposit and a
// terminal state, never backwards.
type WithdrawalStatus string

const (
	WithdrawalPending         WithdrawalStatus = "pending"
	WithdrawalAwaitingDeposit WithdrawalStatus = "awaiting_deposit"
	WithdrawalCompleted       WithdrawalStatus = "completed"
	WithdrawalCanceled        WithdrawalStatus = "canceled"
	WithdrawalFailed          WithdrawalStatus = "failed"
)

// Terminal reports whether the status is final and polling should stop.
func (s WithdrawalStatus) Terminal() bool {
	switch s {
	case WithdrawalCompleted, WithdrawalCanceled, WithdrawalFailed:
		return true
	}
	return false
}

// DepositAddress is the destination-exchange deposit address for a currency,
// with the optional tag/memo and the chain network the funds must travel on.
type DepositAddress struct {
	Address string
	Tag     string
	Network string
}

// WithdrawalTicket is created by a withdraw call and owned by the Transfer
// Tracker until it reaches a terminal status. Only status polls mutate it.
type WithdrawalTicket struct {
	ID          string
	Currency    string
	Amount      float64
	Destination DepositAddress
	TxID        string // chain transaction id, set once the source exchange broadcasts
	Status      WithdrawalStatus
}

// DepositState is the destination exchange's view of an incoming deposit,
// looked up by chain transaction id.
type DepositState string

const (
	DepositWaiting DepositState = "waiting"
	DepositSuccess DepositState = "success"
	DepositFailed  DepositState = "failed"
)
