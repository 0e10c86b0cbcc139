package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepaid/creditengine/ledger"
)

func TestCreditTransaction_ConsumeDrainsExactly(t *testing.T) {
	batch := ledger.NewCreditTransaction("tenant-1", "SUBSCRIPTION", date(2022, time.October, 1), nil, time.Time{})
	require.NoError(t, batch.Add(amt(5), "sub", "op-1", date(2022, time.October, 1)))

	unconsumed, err := batch.Consume(amt(8), date(2022, time.October, 1), ledger.Target{Type: "booking", ID: "B1"}, "usage", "op-2", ledger.ConsumeOptions{})
	require.NoError(t, err)
	assert.True(t, amt(3).Equal(unconsumed))
	assert.True(t, batch.RemainingValue().IsZero())
}

func TestCreditTransaction_ConsumeRejectsExpiredBatch(t *testing.T) {
	batch := ledger.NewCreditTransaction("tenant-1", "SUBSCRIPTION", date(2022, time.October, 1), nil, time.Time{})
	require.NoError(t, batch.Add(amt(5), "sub", "op-1", date(2022, time.October, 1)))

	_, err := batch.Consume(amt(1), date(2022, time.December, 1), ledger.Target{}, "usage", "op-2", ledger.ConsumeOptions{})
	require.Error(t, err)
	var expired *ledger.ExpiredBatchError
	assert.ErrorAs(t, err, &expired)
}

func TestCreditTransaction_ConsumeAllowsReplayOverrideOnExpiredBatch(t *testing.T) {
	batch := ledger.NewCreditTransaction("tenant-1", "SUBSCRIPTION", date(2022, time.October, 1), nil, time.Time{})
	require.NoError(t, batch.Add(amt(5), "sub", "op-1", date(2022, time.October, 1)))

	_, err := batch.Consume(amt(1), date(2022, time.December, 1), ledger.Target{Type: "booking", ID: "B1"}, "usage", "op-2", ledger.ConsumeOptions{IgnoreExpiration: true})
	require.NoError(t, err)
}

func TestCreditTransaction_RefundSumsMultipleConsumesWithSameTarget(t *testing.T) {
	batch := ledger.NewCreditTransaction("tenant-1", "SUBSCRIPTION", date(2022, time.October, 1), nil, time.Time{})
	require.NoError(t, batch.Add(amt(10), "sub", "op-1", date(2022, time.October, 1)))

	target := ledger.Target{Type: "booking", ID: "B1"}
	_, err := batch.Consume(amt(2), date(2022, time.October, 1), target, "usage", "op-2", ledger.ConsumeOptions{})
	require.NoError(t, err)
	_, err = batch.Consume(amt(3), date(2022, time.October, 1), target, "usage", "op-3", ledger.ConsumeOptions{})
	require.NoError(t, err)

	require.NoError(t, batch.Refund(target, "refund", "op-4", date(2022, time.October, 1)))
	assert.True(t, amt(10).Equal(batch.RemainingValue()))
}

// Open Question 9.5, resolved: refund on an expired batch books an
// audit-correct credit without reviving balance participation.
func TestCreditTransaction_RefundOnExpiredBatchDoesNotReviveBalance(t *testing.T) {
	batch := ledger.NewCreditTransaction("tenant-1", "SUBSCRIPTION", date(2022, time.October, 1), nil, time.Time{})
	require.NoError(t, batch.Add(amt(10), "sub", "op-1", date(2022, time.October, 1)))

	target := ledger.Target{Type: "booking", ID: "B1"}
	_, err := batch.Consume(amt(4), date(2022, time.October, 1), target, "usage", "op-2", ledger.ConsumeOptions{})
	require.NoError(t, err)

	require.NoError(t, batch.Expire(date(2022, time.November, 1), "op-3"))
	assert.True(t, batch.RemainingValue().IsZero())

	require.NoError(t, batch.Refund(target, "refund", "op-4", date(2022, time.November, 1)))
	assert.True(t, amt(4).Equal(batch.RemainingValue()), "refund still books the credit")
	assert.True(t, batch.IsExpired(date(2022, time.November, 1)), "EXPIRE movement remains absorbing")
}

func TestMovement_RejectsFractionalAmount(t *testing.T) {
	batch := ledger.NewCreditTransaction("tenant-1", "SUBSCRIPTION", date(2022, time.October, 1), nil, time.Time{})
	err := batch.Add(amt(10).Div(amt(3)), "sub", "op-1", date(2022, time.October, 1))
	require.Error(t, err)
	var invalid *ledger.InvalidInputError
	assert.ErrorAs(t, err, &invalid)
}

func TestMovement_ConsumeDoesNotRequireTarget(t *testing.T) {
	batch := ledger.NewCreditTransaction("tenant-1", "SUBSCRIPTION", date(2022, time.October, 1), nil, time.Time{})
	require.NoError(t, batch.Add(amt(5), "sub", "op-1", date(2022, time.October, 1)))

	_, err := batch.Consume(amt(1), date(2022, time.October, 1), ledger.Target{}, "usage", "op-2", ledger.ConsumeOptions{})
	require.NoError(t, err, "consume itself does not require a target unless a refund is anticipated")
}
