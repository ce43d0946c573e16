package order

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/inventory"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func checkoutOrder(t *testing.T) Order {
	t.Helper()
	ledger, err := inventory.NewLedger([]inventory.Record{{ProductID: "p1", Available: 5}})
	require.NoError(t, err)
	c, _, _, err := cart.New().AddItem(ledger, catalog.Product{ID: "p1", Name: "Burger", Price: 800}, 2, nil, t0)
	require.NoError(t, err)

	o, err := NewFromCart("0b9d6f1e-6a6e-4c53-9b1f-3f1c2f7b8a11", c, "pos", t0, SyncLocalOnly)
	require.NoError(t, err)
	return o
}

func TestNewFromCart(t *testing.T) {
	o := checkoutOrder(t)

	assert.Equal(t, StatusPreparing, o.Status)
	assert.Equal(t, int64(1600), o.TotalAmount)
	assert.Equal(t, "ORD-0B9D6F1E", o.DisplayID)
	require.Len(t, o.StatusHistory, 1)
	assert.Equal(t, StatusPreparing, o.StatusHistory[0].Status)
	assert.Equal(t, t0.Add(15*time.Minute), o.EstimatedCompletion)
	assert.True(t, o.OfflineCreated)

	_, err := NewFromCart("x", cart.New(), "pos", t0, SyncPending)
	require.ErrorIs(t, err, cart.ErrEmptyCart)
}

func TestTransition_KitchenMarksReady(t *testing.T) {
	o := checkoutOrder(t)

	ready, err := Transition(o, StatusReady, "kitchen", "", t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, StatusReady, ready.Status)
	require.Len(t, ready.StatusHistory, 2)
	assert.Equal(t, "kitchen", ready.StatusHistory[1].UpdatedBy)
	assert.Equal(t, t0.Add(3*time.Minute), ready.EstimatedCompletion)
	assert.Len(t, o.StatusHistory, 1, "input order must not change")

	_, err = Transition(ready, StatusPending, "kitchen", "", t0)
	require.ErrorIs(t, err, ErrInvalidTransition)
	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, StatusReady, te.From)
}

// Transition succeeds exactly for the table's edges and leaves the order
// byte-for-byte unchanged otherwise.
func TestTransitionSoundness(t *testing.T) {
	base := checkoutOrder(t)

	for _, from := range Statuses {
		for _, to := range Statuses {
			o := base.Clone()
			o.Status = from
			before, err := json.Marshal(o)
			require.NoError(t, err)

			next, err := Transition(o, to, "tester", "note", t0.Add(time.Hour))
			allowed := false
			for _, s := range NextPossibleStatuses(from) {
				allowed = allowed || s == to
			}

			after, mErr := json.Marshal(o)
			require.NoError(t, mErr)
			assert.JSONEq(t, string(before), string(after), "%s -> %s mutated input", from, to)

			if allowed {
				require.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, next.Status)
				assert.Len(t, next.StatusHistory, len(o.StatusHistory)+1)
				continue
			}
			require.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s", from, to)
			nextBody, _ := json.Marshal(next)
			assert.JSONEq(t, string(before), string(nextBody))
		}
	}
}

func TestTransitionUnknownStatus(t *testing.T) {
	_, err := Transition(checkoutOrder(t), Status("eaten"), "x", "", t0)
	require.ErrorIs(t, err, ErrUnknownStatus)
}

func TestNextPossibleStatuses(t *testing.T) {
	tests := map[Status][]Status{
		StatusPending:   {StatusConfirmed, StatusCancelled},
		StatusConfirmed: {StatusPreparing, StatusCancelled},
		StatusPreparing: {StatusReady, StatusCancelled},
		StatusReady:     {StatusDelivered},
		StatusDelivered: {},
		StatusCancelled: {},
	}
	for from, want := range tests {
		assert.ElementsMatch(t, want, NextPossibleStatuses(from), from)
	}

	got := NextPossibleStatuses(StatusPending)
	got[0] = StatusDelivered
	assert.Equal(t, StatusConfirmed, NextPossibleStatuses(StatusPending)[0], "callers cannot edit the table")
}

func TestFinalAndCancel(t *testing.T) {
	assert.True(t, IsFinal(StatusDelivered))
	assert.True(t, IsFinal(StatusCancelled))
	assert.False(t, IsFinal(StatusReady))
	assert.False(t, IsFinal(Status("bogus")))

	assert.True(t, CanCancel(StatusPreparing))
	assert.False(t, CanCancel(StatusReady))
	assert.False(t, CanCancel(StatusDelivered))
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("PREPARING")
	require.NoError(t, err)
	assert.Equal(t, StatusPreparing, s)
	assert.Equal(t, "Preparing", s.DisplayName())

	_, err = ParseStatus("lost")
	require.ErrorIs(t, err, ErrUnknownStatus)
}
