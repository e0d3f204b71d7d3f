package mongodb

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecimal128Conversion(t *testing.T) {
	for _, in := range []string{"0", "30", "12.5", "0.001", "99999999.9999"} {
		t.Run(in, func(t *testing.T) {
			d := decimal.RequireFromString(in)

			stored, err := ToDecimal128(d)
			require.NoError(t, err)

			back, err := FromDecimal128(stored)
			require.NoError(t, err)
			assert.True(t, d.Equal(back), "got %s", back)
		})
	}
}

func TestNow_TruncatesToMillis(t *testing.T) {
	assert.Zero(t, Now().Nanosecond()%1_000_000)
}
