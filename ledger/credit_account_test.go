package ledger_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepaid/creditengine/ledger"
)

func amt(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newAccountAt(t *testing.T, ref time.Time) *ledger.CreditAccount {
	t.Helper()
	return ledger.NewCreditAccount("tenant-1", ref)
}

// Scenario 1: Add then consume within balance.
func TestCreditAccount_AddThenConsumeWithinBalance(t *testing.T) {
	acc := newAccountAt(t, date(2022, time.October, 1))

	require.NoError(t, acc.Add(amt(10), "sub", "SUBSCRIPTION", "op-1", nil))
	require.NoError(t, acc.Consume(amt(3), "usage", time.Time{}, ledger.Target{}, "op-2"))

	assert.True(t, amt(7).Equal(acc.Balance(time.Time{})))

	batch := acc.Batches()[0]
	require.Len(t, batch.Movements(), 2)
	assert.Equal(t, ledger.KindAdd, batch.Movements()[0].Kind)
	assert.True(t, amt(10).Equal(batch.Movements()[0].SignedDelta))
	assert.Equal(t, ledger.KindConsume, batch.Movements()[1].Kind)
	assert.True(t, amt(-3).Equal(batch.Movements()[1].SignedDelta))
}

// Scenario 2: Consume spans two batches (FIFO by reverse insertion).
func TestCreditAccount_ConsumeSpansTwoBatches(t *testing.T) {
	acc := newAccountAt(t, date(2022, time.October, 1))

	require.NoError(t, acc.Add(amt(5), "sub", "SUBSCRIPTION", "op-1", nil))
	require.NoError(t, acc.Add(amt(5), "sub", "SUBSCRIPTION", "op-2", nil))
	require.NoError(t, acc.Consume(amt(6), "usage", time.Time{}, ledger.Target{}, "op-3"))

	assert.True(t, amt(4).Equal(acc.Balance(time.Time{})))

	newest := acc.Batches()[1]
	oldest := acc.Batches()[0]
	require.Len(t, newest.Movements(), 2)
	assert.True(t, amt(-5).Equal(newest.Movements()[1].SignedDelta), "newest batch drained first")
	require.Len(t, oldest.Movements(), 2)
	assert.True(t, amt(-1).Equal(oldest.Movements()[1].SignedDelta), "remainder spills to older batch")
}

// Scenario 3: Balance excludes expired batches.
func TestCreditAccount_BalanceExcludesExpiredBatches(t *testing.T) {
	acc := newAccountAt(t, date(2022, time.October, 1))
	require.NoError(t, acc.Add(amt(10), "sub", "SUBSCRIPTION", "op-1", nil))

	acc.SetReferenceDate(date(2022, time.November, 1))

	assert.True(t, amt(0).Equal(acc.Balance(time.Time{})))
	assert.True(t, amt(10).Equal(acc.CountExpired()))
}

// Scenario 4: Refund restores exactly the consumed amount, idempotently.
func TestCreditAccount_RefundRestoresConsumedAmount(t *testing.T) {
	acc := newAccountAt(t, date(2022, time.October, 1))
	target := ledger.Target{Type: "booking", ID: "B1"}

	require.NoError(t, acc.Add(amt(5), "sub", "SUBSCRIPTION", "op-1", nil))
	require.NoError(t, acc.Add(amt(5), "sub", "SUBSCRIPTION", "op-2", nil))
	require.NoError(t, acc.Consume(amt(6), "usage", time.Time{}, target, "op-3"))
	assert.True(t, amt(4).Equal(acc.Balance(time.Time{})))

	require.NoError(t, acc.Refund(target, "refund", "op-4"))
	assert.True(t, amt(10).Equal(acc.Balance(time.Time{})))

	require.NoError(t, acc.Refund(target, "refund", "op-5"))
	assert.True(t, amt(10).Equal(acc.Balance(time.Time{})), "second refund is a no-op")
}

// Scenario 5: Expire is idempotent and absorbing.
func TestCreditAccount_ExpireIsIdempotent(t *testing.T) {
	acc := newAccountAt(t, date(2022, time.October, 1))
	require.NoError(t, acc.Add(amt(10), "sub", "SUBSCRIPTION", "op-1", nil))

	acc.SetReferenceDate(date(2022, time.November, 1))
	require.NoError(t, acc.Expire("op-2"))
	require.NoError(t, acc.Expire("op-3"))

	batch := acc.Batches()[0]
	expireCount := 0
	for _, m := range batch.Movements() {
		if m.Kind == ledger.KindExpire {
			expireCount++
			assert.True(t, amt(-10).Equal(m.SignedDelta))
		}
	}
	assert.Equal(t, 1, expireCount)
	assert.True(t, amt(0).Equal(acc.Balance(time.Time{})))
}

// Scenario 6: Renew carries forward original ADD, not remaining.
func TestCreditAccount_RenewCarriesForwardOriginalAdd(t *testing.T) {
	acc := newAccountAt(t, date(2022, time.October, 1))
	require.NoError(t, acc.Add(amt(10), "sub", "SUBSCRIPTION", "op-1", nil))
	require.NoError(t, acc.Consume(amt(3), "usage", time.Time{}, ledger.Target{}, "op-2"))

	acc.SetReferenceDate(date(2022, time.November, 1))
	require.NoError(t, acc.Renew("op-3", nil))

	require.Len(t, acc.Batches(), 2)
	successor := acc.Batches()[1]
	assert.True(t, successor.CreationDate().Equal(date(2022, time.November, 1)))
	require.Len(t, successor.Movements(), 1)
	assert.Equal(t, ledger.KindRenew, successor.Movements()[0].Kind)
	assert.True(t, amt(10).Equal(successor.Movements()[0].SignedDelta))

	assert.True(t, amt(10).Equal(acc.Balance(time.Time{})), "predecessor stays expired and excluded")
}

// Renew does not double-renew within the same session.
func TestCreditAccount_RenewDoesNotDoubleRenew(t *testing.T) {
	acc := newAccountAt(t, date(2022, time.October, 1))
	require.NoError(t, acc.Add(amt(10), "sub", "SUBSCRIPTION", "op-1", nil))

	acc.SetReferenceDate(date(2022, time.November, 1))
	require.NoError(t, acc.Renew("op-2", nil))
	require.NoError(t, acc.Renew("op-3", nil))

	assert.Len(t, acc.Batches(), 2)
}

// Scenario 7: Expiration date clamping across months of differing length.
func TestCreditTransaction_ExpirationDateClamping(t *testing.T) {
	anchor := date(2022, time.January, 31)
	batch := ledger.NewCreditTransaction("tenant-1", "SUBSCRIPTION", anchor, nil, anchor)

	assert.True(t, batch.ExpirationDate().Equal(date(2022, time.February, 28)))

	next := ledger.NewCreditTransaction("tenant-1", "SUBSCRIPTION", date(2022, time.February, 28), nil, anchor)
	assert.True(t, next.ExpirationDate().Equal(date(2022, time.March, 31)), "anchor day returns once the month is long enough")
}

// P1 Conservation: balance equals the signed sum of every movement kind.
func TestProperty_Conservation(t *testing.T) {
	acc := newAccountAt(t, date(2022, time.October, 1))
	target := ledger.Target{Type: "booking", ID: "B1"}

	require.NoError(t, acc.Add(amt(10), "sub", "SUBSCRIPTION", "op-1", nil))
	require.NoError(t, acc.Add(amt(5), "sub", "SUBSCRIPTION", "op-2", nil))
	require.NoError(t, acc.Consume(amt(6), "usage", time.Time{}, target, "op-3"))
	require.NoError(t, acc.Refund(target, "refund", "op-4"))

	var added, consumed, refunded, expired, renewed decimal.Decimal
	for _, b := range acc.Batches() {
		for _, m := range b.Movements() {
			switch m.Kind {
			case ledger.KindAdd:
				added = added.Add(m.Amount)
			case ledger.KindConsume:
				consumed = consumed.Add(m.Amount)
			case ledger.KindRefund:
				refunded = refunded.Add(m.Amount)
			case ledger.KindExpire:
				expired = expired.Add(m.Amount)
			case ledger.KindRenew:
				renewed = renewed.Add(m.Amount)
			}
		}
	}

	expected := added.Add(renewed).Add(refunded).Sub(consumed).Sub(expired)
	assert.True(t, expected.Equal(acc.Balance(time.Time{})))
}

// P2 Non-negativity: no batch or account balance ever goes negative.
func TestProperty_NonNegativity(t *testing.T) {
	acc := newAccountAt(t, date(2022, time.October, 1))
	require.NoError(t, acc.Add(amt(5), "sub", "SUBSCRIPTION", "op-1", nil))
	require.NoError(t, acc.Add(amt(5), "sub", "SUBSCRIPTION", "op-2", nil))
	require.NoError(t, acc.Consume(amt(10), "usage", time.Time{}, ledger.Target{}, "op-3"))

	for _, b := range acc.Batches() {
		assert.False(t, b.RemainingValue().IsNegative())
	}
	assert.False(t, acc.Balance(time.Time{}).IsNegative())

	err := acc.Consume(amt(1), "usage", time.Time{}, ledger.Target{}, "op-4")
	assert.Error(t, err)
	var insufficient *ledger.InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
}

// P5 FIFO drain: with only ADD and CONSUME and no expiry, batches drain
// to zero in insertion order.
func TestProperty_FIFODrainOrder(t *testing.T) {
	acc := newAccountAt(t, date(2022, time.October, 1))
	require.NoError(t, acc.Add(amt(3), "sub", "SUBSCRIPTION", "op-1", nil))
	require.NoError(t, acc.Add(amt(3), "sub", "SUBSCRIPTION", "op-2", nil))
	require.NoError(t, acc.Add(amt(3), "sub", "SUBSCRIPTION", "op-3", nil))

	require.NoError(t, acc.Consume(amt(3), "usage", time.Time{}, ledger.Target{}, "op-4"))
	assert.True(t, acc.Batches()[2].RemainingValue().IsZero(), "newest drains first")
	assert.False(t, acc.Batches()[1].RemainingValue().IsZero())
	assert.False(t, acc.Batches()[0].RemainingValue().IsZero())

	require.NoError(t, acc.Consume(amt(3), "usage", time.Time{}, ledger.Target{}, "op-5"))
	assert.True(t, acc.Batches()[1].RemainingValue().IsZero(), "next oldest drains second")
	assert.False(t, acc.Batches()[0].RemainingValue().IsZero())
}

// P6 Expiration determinism: same inputs, same result, regardless of
// when the function is called.
func TestProperty_ExpirationDeterminism(t *testing.T) {
	anchor := date(2022, time.January, 31)
	creation := date(2022, time.January, 31)

	first := ledger.NewCreditTransaction("tenant-1", "SUBSCRIPTION", creation, nil, anchor).ExpirationDate()
	second := ledger.NewCreditTransaction("tenant-1", "SUBSCRIPTION", creation, nil, anchor).ExpirationDate()
	assert.True(t, first.Equal(second))
}

func TestCreditAccount_PendingMovements(t *testing.T) {
	acc := newAccountAt(t, date(2022, time.October, 1))
	require.NoError(t, acc.Add(amt(10), "sub", "SUBSCRIPTION", "op-1", nil))

	pending := acc.PendingMovementsByKind(ledger.KindAdd)
	require.Len(t, pending, 1)
	assert.True(t, pending[0].Movement.Pending())
}
