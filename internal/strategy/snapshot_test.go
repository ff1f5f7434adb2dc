package strategy

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainSnapshot(t *testing.T) {
	h := newHarness()
	h.feed.quote("SPY", 452.00, 452.10)
	// The nearest strike to ~452 is 450; the count=1 window covers 445
	// and 450.
	h.feed.quote(".C445", 7.80, 7.90)
	h.feed.quote(".P445", 0.60, 0.70)
	h.feed.quote(".C450", 3.00, 3.10)
	h.feed.quote(".P450", 1.00, 1.10)
	h.feed.greek(".C445", 0.75)
	h.feed.greek(".P445", -0.25)
	h.feed.greek(".C450", 0.62)
	h.feed.greek(".P450", -0.38)
	// A second underlying tick supersedes the first.
	h.feed.quote("SPY", 452.05, 452.15)

	view, err := h.orch.ChainSnapshot(context.Background(), "SPY", 1, false)
	require.NoError(t, err)

	assert.True(t, view.UnderlyingMark.Equal(decimal.NewFromFloat(452.10)))
	require.Len(t, view.Rows, 2)
	assert.True(t, view.Rows[0].Strike.Equal(decimal.NewFromInt(445)))
	assert.True(t, view.Rows[0].CallBid.Equal(decimal.NewFromFloat(7.80)))
	assert.True(t, view.Rows[0].PutDelta.Equal(decimal.NewFromFloat(-0.25)))
	assert.True(t, view.Rows[1].Strike.Equal(decimal.NewFromInt(450)))
	assert.Equal(t, 1, view.ATMIndex, "450 sits nearest the mark")
	assert.True(t, h.feed.closed)
}

func TestChainSnapshotRejectsBadCount(t *testing.T) {
	h := newHarness()
	_, err := h.orch.ChainSnapshot(context.Background(), "SPY", 0, false)
	var invalid *InvalidParameterError
	require.ErrorAs(t, err, &invalid)
	assert.Zero(t, h.feedOpen)
}
