package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minkyu-kim/kimpbot/internal/domain"
)

func TestDSN(t *testing.T) {
	t.Run("explicit DSN wins", func(t *testing.T) {
		cfg := ClientConfig{DSN: "postgres://u:p@host:5432/db", Host: "other"}
		assert.Equal(t, "postgres://u:p@host:5432/db", DSN(cfg))
	})

	t.Run("built from parts with defaults", func(t *testing.T) {
		cfg := ClientConfig{Host: "localhost", Database: "kimpbot", User: "bot", Password: "pw"}
		assert.Equal(t, "postgres://bot:pw@localhost:5432/kimpbot?sslmode=disable", DSN(cfg))
	})
}

func TestLegCodec(t *testing.T) {
	t.Run("nil leg stays nil", func(t *testing.T) {
		data, err := encodeLeg(nil)
		require.NoError(t, err)
		assert.Nil(t, data)

		leg, err := decodeLeg(nil)
		require.NoError(t, err)
		assert.Nil(t, leg)
	})

	t.Run("round trip", func(t *testing.T) {
		in := &domain.OrderResult{
			OrderID:      "42",
			Symbol:       "XRP/USDT",
			AveragePrice: 0.52,
			FilledQty:    961.5,
			TotalCost:    499.98,
			Fee:          0.4999,
		}
		data, err := encodeLeg(in)
		require.NoError(t, err)

		out, err := decodeLeg(data)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})

	t.Run("malformed payload errors", func(t *testing.T) {
		_, err := decodeLeg([]byte("{not json"))
		assert.Error(t, err)
	})
}
