package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func qty(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func stockedRecord(t *testing.T, onHand string) *StockRecord {
	t.Helper()
	record := NewStockRecord("P-1", "W-1", time.Now())
	require.NoError(t, record.Receive(qty(onHand), "initial", time.Now()))
	record.PullEvents()
	return record
}

func TestStockRecordID(t *testing.T) {
	assert.Equal(t, "SR-P-1@W-1", StockRecordID("P-1", "W-1"))
	assert.Equal(t, StockRecordID("P-1", "W-1"), NewStockRecord("P-1", "W-1", time.Now()).ID)
}

func TestStockRecord_ReserveReleaseConsume(t *testing.T) {
	record := stockedRecord(t, "100")
	now := time.Now()

	require.NoError(t, record.Reserve(qty("30"), now))
	assert.True(t, record.Reserved.Equal(qty("30")))
	assert.True(t, record.Available().Equal(qty("70")))

	require.NoError(t, record.Consume(qty("30"), now))
	assert.True(t, record.OnHand.Equal(qty("70")))
	assert.True(t, record.Reserved.IsZero())

	require.NoError(t, record.Reserve(qty("40"), now))
	require.NoError(t, record.Release(qty("40"), now))
	assert.True(t, record.Reserved.IsZero())
	assert.True(t, record.OnHand.Equal(qty("70")))
}

func TestStockRecord_ReserveRejectsOversell(t *testing.T) {
	record := stockedRecord(t, "100")
	now := time.Now()

	for i := 0; i < 3; i++ {
		require.NoError(t, record.Reserve(qty("30"), now))
	}
	err := record.Reserve(qty("20"), now)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.True(t, record.Reserved.Equal(qty("90")))
}

func TestStockRecord_InvalidQuantities(t *testing.T) {
	record := stockedRecord(t, "10")
	now := time.Now()

	assert.ErrorIs(t, record.Reserve(qty("0"), now), ErrInvalidQuantity)
	assert.ErrorIs(t, record.Reserve(qty("-1"), now), ErrInvalidQuantity)
	assert.ErrorIs(t, record.Release(qty("1"), now), ErrInvalidQuantity)
	assert.ErrorIs(t, record.Consume(qty("1"), now), ErrInvalidQuantity)
	assert.ErrorIs(t, record.Receive(qty("0"), "", now), ErrInvalidQuantity)
}

func TestStockRecord_FractionalQuantities(t *testing.T) {
	record := stockedRecord(t, "1.5")
	now := time.Now()

	require.NoError(t, record.Reserve(qty("0.75"), now))
	require.NoError(t, record.Reserve(qty("0.75"), now))
	assert.True(t, record.Available().IsZero())
	assert.ErrorIs(t, record.Reserve(qty("0.001"), now), ErrInsufficientStock)
}

func TestStockRecord_AdjustKeepsReserved(t *testing.T) {
	record := stockedRecord(t, "100")
	now := time.Now()
	require.NoError(t, record.Reserve(qty("60"), now))

	assert.ErrorIs(t, record.Adjust(qty("59"), "count", now), ErrBelowReserved)
	assert.ErrorIs(t, record.Adjust(qty("-1"), "count", now), ErrInvalidQuantity)

	require.NoError(t, record.Adjust(qty("60"), "count", now))
	assert.True(t, record.Available().IsZero())

	events := record.PullEvents()
	require.Len(t, events, 1)
	adjusted, ok := events[0].(*StockAdjustedEvent)
	require.True(t, ok)
	assert.True(t, adjusted.PreviousOnHand.Equal(qty("100")))
	assert.True(t, adjusted.OnHand.Equal(qty("60")))
	assert.Empty(t, record.PullEvents())
}
