package transfer

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minkyu-kim/kimpbot/internal/domain"
)

type fakeSource struct {
	domain.Gateway
	statuses []domain.WithdrawalStatus
	txid     string
	errs     []error
	polls    int
}

func (f *fakeSource) Name() string { return "source" }

func (f *fakeSource) FetchWithdrawalStatus(ctx context.Context, currency, id string) (domain.WithdrawalStatus, string, error) {
	i := f.polls
	f.polls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", "", f.errs[i]
	}
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	status := f.statuses[i]
	if status == domain.WithdrawalCompleted {
		return status, f.txid, nil
	}
	return status, "", nil
}

type fakeDest struct {
	domain.Gateway
	states []domain.DepositState
	polls  int
	seen   []string
}

func (f *fakeDest) Name() string { return "dest" }

func (f *fakeDest) FetchDepositByTxID(ctx context.Context, currency, txid string) (domain.DepositState, error) {
	f.seen = append(f.seen, txid)
	i := f.polls
	f.polls++
	if i >= len(f.states) {
		i = len(f.states) - 1
	}
	return f.states[i], nil
}

func newTicket() *domain.WithdrawalTicket {
	return &domain.WithdrawalTicket{
		ID:       "wd-1",
		Currency: "XRP",
		Amount:   500,
		Status:   domain.WithdrawalPending,
	}
}

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestTrackCompletesAfterDepositConfirmed(t *testing.T) {
	src := &fakeSource{
		statuses: []domain.WithdrawalStatus{domain.WithdrawalPending, domain.WithdrawalCompleted},
		txid:     "0xabc",
	}
	dst := &fakeDest{states: []domain.DepositState{domain.DepositWaiting, domain.DepositSuccess}}

	tracker := New(src, dst, time.Millisecond, discard())
	ticket := newTicket()

	status, err := tracker.Track(context.Background(), ticket)

	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalCompleted, status)
	assert.Equal(t, domain.WithdrawalCompleted, ticket.Status)
	assert.Equal(t, "0xabc", ticket.TxID)
	assert.Equal(t, 2, src.polls)
	assert.Equal(t, 2, dst.polls)
	for _, txid := range dst.seen {
		assert.Equal(t, "0xabc", txid)
	}
}

func TestTrackRetriesTransientErrors(t *testing.T) {
	src := &fakeSource{
		statuses: []domain.WithdrawalStatus{domain.WithdrawalPending, domain.WithdrawalPending, domain.WithdrawalCompleted},
		errs:     []error{errors.New("timeout"), nil, nil},
		txid:     "0xdef",
	}
	dst := &fakeDest{states: []domain.DepositState{domain.DepositSuccess}}

	tracker := New(src, dst, time.Millisecond, discard())

	status, err := tracker.Track(context.Background(), newTicket())

	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalCompleted, status)
	assert.Equal(t, 3, src.polls)
}

func TestTrackCanceledWithdrawal(t *testing.T) {
	src := &fakeSource{statuses: []domain.WithdrawalStatus{domain.WithdrawalCanceled}}
	dst := &fakeDest{}

	tracker := New(src, dst, time.Millisecond, discard())
	ticket := newTicket()

	status, err := tracker.Track(context.Background(), ticket)

	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalCanceled, status)
	assert.Zero(t, dst.polls)
}

func TestTrackFailedDeposit(t *testing.T) {
	src := &fakeSource{
		statuses: []domain.WithdrawalStatus{domain.WithdrawalCompleted},
		txid:     "0x123",
	}
	dst := &fakeDest{states: []domain.DepositState{domain.DepositFailed}}

	tracker := New(src, dst, time.Millisecond, discard())

	status, err := tracker.Track(context.Background(), newTicket())

	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalFailed, status)
}

func TestTrackContextCancellationKeepsTicketState(t *testing.T) {
	// The source never completes, so the only way out is cancellation.
	src := &fakeSource{statuses: []domain.WithdrawalStatus{domain.WithdrawalPending}}
	dst := &fakeDest{}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	tracker := New(src, dst, time.Millisecond, discard())
	ticket := newTicket()

	status, err := tracker.Track(ctx, ticket)

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.WithdrawalPending, status)
	assert.Equal(t, domain.WithdrawalPending, ticket.Status)
}
