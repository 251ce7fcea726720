// Package balancer keeps the overseas exchange's spot and futures USDT
// wallets at the ratio a leveraged hedge needs.
package balancer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/minkyu-kim/kimpbot/internal/domain"
	"github.com/minkyu-kim/kimpbot/internal/sizing"
)

// Balancer computes and executes the wallet transfer needed so that the spot
// balance is targetLeverage times the futures balance.
type Balancer struct {
	transferer domain.FundsTransferer
	logger     *slog.Logger
}

// New creates a Balancer that executes transfers through transferer.
func New(transferer domain.FundsTransferer, logger *slog.Logger) *Balancer {
	return &Balancer{
		transferer: transferer,
		logger:     logger.With(slog.String("component", "balancer")),
	}
}

// Plan computes the transfer that moves the wallets to the target ratio.
// With target leverage L the futures wallet should hold (spot+futures)/(L+1).
// The required balance and the transfer amount are truncated toward zero at
// 8 decimal places. A nil instruction means no transfer is needed; repeated
// calls with unchanged inputs keep returning nil.
func Plan(spotBalance, futuresBalance float64, targetLeverage int) *domain.TransferInstruction {
	required := sizing.Truncate8((spotBalance + futuresBalance) / float64(targetLeverage+1))

	switch {
	case required > futuresBalance:
		return &domain.TransferInstruction{
			Direction: domain.TransferSpotToFutures,
			Amount:    sizing.Truncate8(required - futuresBalance),
		}
	case required < futuresBalance:
		return &domain.TransferInstruction{
			Direction: domain.TransferFuturesToSpot,
			Amount:    sizing.Truncate8(futuresBalance - required),
		}
	default:
		return nil
	}
}

// Rebalance fetches nothing itself: the caller passes point-in-time balances
// and Rebalance executes the planned transfer, if any. It returns the
// executed instruction, or nil when the wallets were already balanced.
func (b *Balancer) Rebalance(ctx context.Context, spotBalance, futuresBalance float64, targetLeverage int) (*domain.TransferInstruction, error) {
	instr := Plan(spotBalance, futuresBalance, targetLeverage)
	if instr == nil {
		b.logger.Debug("wallets already at target ratio",
			slog.Float64("spot", spotBalance),
			slog.Float64("futures", futuresBalance),
			slog.Int("leverage", targetLeverage),
		)
		return nil, nil
	}

	if err := b.transferer.TransferFunds(ctx, instr.Direction, instr.Amount); err != nil {
		return nil, fmt.Errorf("balancer: transfer %s %.8f: %w", instr.Direction, instr.Amount, err)
	}

	b.logger.Info("rebalanced wallets",
		slog.String("direction", string(instr.Direction)),
		slog.Float64("amount", instr.Amount),
		slog.Int("leverage", targetLeverage),
	)
	return instr, nil
}
