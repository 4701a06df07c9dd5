package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewSaleRecords tests per-unit record fan-out
func TestNewSaleRecords(t *testing.T) {
	item := newTestItem(t, 3, true)
	tx := &ExternalTransaction{
		TransactionID: "pos:TXN-100",
		Channel:       ChannelPOS,
		CompletedAt:   time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}
	line := TransactionLineItem{
		Name:      "AB12 - Wool coat",
		Quantity:  2,
		UnitPrice: decimal.NewFromFloat(48.50),
		Currency:  "EUR",
	}

	records := NewSaleRecords(item, tx, line)
	require.Len(t, records, 2)

	for i, record := range records {
		assert.Equal(t, item.ItemID, record.ItemID)
		assert.Equal(t, "AB12", record.Code)
		assert.Equal(t, "pos:TXN-100", record.TransactionID)
		assert.Equal(t, i, record.UnitIndex)
		assert.Equal(t, ChannelPOS, record.Channel)
		assert.True(t, decimal.NewFromFloat(48.50).Equal(record.RealizedPrice))
		assert.Equal(t, tx.CompletedAt, record.SoldAt)
	}
}

// TestChannelErrorClassification tests retryable detection through wrapping
func TestChannelErrorClassification(t *testing.T) {
	retryable := NewChannelError(ChannelMarketplace, "withdraw", FailureRetryable, assert.AnError)
	permanent := NewChannelError(ChannelPOS, "publish", FailurePermanent, assert.AnError)

	assert.True(t, IsRetryable(retryable))
	assert.False(t, IsRetryable(permanent))
	assert.False(t, IsRetryable(assert.AnError))
	assert.ErrorIs(t, retryable, assert.AnError)
}
