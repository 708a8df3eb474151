package shipping

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsDomestic(t *testing.T) {
	tests := []struct {
		country string
		want    bool
	}{
		{"UK", true},
		{"uk", true},
		{"Uk", true},
		{"United Kingdom", true},
		{"united kingdom", true},
		{"UNITED KINGDOM", true},
		{"U.K.", false},
		{"Britain", false},
		{"Great Britain", false},
		{"England", false},
		{"Scotland", false},
		{"France", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.country, func(t *testing.T) {
			addr := Address{Country: tt.country}
			assert.Equal(t, tt.want, addr.IsDomestic())
		})
	}
}

func TestCalculateCost(t *testing.T) {
	t.Run("domestic address costs 5.99", func(t *testing.T) {
		cost, err := CalculateCost(&Address{Country: "United Kingdom"})
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("5.99").Equal(cost), "got %s", cost)
	})

	t.Run("international address costs 8.99", func(t *testing.T) {
		cost, err := CalculateCost(&Address{Country: "Germany"})
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("8.99").Equal(cost), "got %s", cost)
	})

	t.Run("nil address is rejected", func(t *testing.T) {
		_, err := CalculateCost(nil)
		require.ErrorIs(t, err, ErrNoAddress)
	})
}
