package sizing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minkyu-kim/kimpbot/internal/domain"
)

func TestNormalizeCost_TruncatesTowardZero(t *testing.T) {
	market := &domain.Market{MinCost: 100, PricePrecision: 2}

	got, err := NormalizeCost(1234.567, market)
	require.NoError(t, err)
	assert.Equal(t, 1234.56, got)
}

func TestNormalizeCost_NeverRoundsUp(t *testing.T) {
	market := &domain.Market{MinCost: 0, PricePrecision: 2}

	cases := []struct {
		in   float64
		want float64
	}{
		{1234.567, 1234.56},
		{1234.569, 1234.56},
		{99.999, 99.99},
		{0.019, 0.01},
	}
	for _, tc := range cases {
		got, err := NormalizeCost(tc.in, market)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "input %v", tc.in)
		assert.LessOrEqual(t, got, tc.in)
	}
}

func TestNormalizeCost_BelowMinimum(t *testing.T) {
	market := &domain.Market{MinCost: 100, PricePrecision: 2}

	// 100.004 truncates to 100.00 which still meets the minimum.
	got, err := NormalizeCost(100.004, market)
	require.NoError(t, err)
	assert.Equal(t, 100.0, got)

	// 99.999 truncates to 99.99 which is under the minimum notional.
	_, err = NormalizeCost(99.999, market)
	assert.ErrorIs(t, err, domain.ErrBelowMinimum)

	_, err = NormalizeCost(0, market)
	assert.ErrorIs(t, err, domain.ErrBelowMinimum)
}

func TestNormalizeAmount(t *testing.T) {
	market := &domain.Market{MinAmount: 0.001, AmountPrecision: 3}

	got, err := NormalizeAmount(0.123456, market)
	require.NoError(t, err)
	assert.Equal(t, 0.123, got)

	_, err = NormalizeAmount(0.0004, market)
	assert.ErrorIs(t, err, domain.ErrBelowMinimum)
}

func TestNormalize_NoMarketData(t *testing.T) {
	_, err := NormalizeAmount(1, nil)
	assert.ErrorIs(t, err, domain.ErrNoMarketData)

	_, err = NormalizeCost(1, nil)
	assert.ErrorIs(t, err, domain.ErrNoMarketData)
}

func TestTruncate8(t *testing.T) {
	assert.Equal(t, 0.12345678, Truncate8(0.123456789))
	assert.Equal(t, 200.0, Truncate8(200.0))
}
