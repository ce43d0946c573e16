package cart

import (
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/inventory"
)

var (
	now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	burger = catalog.Product{
		ID: "p1", Name: "Burger", Price: 800, Category: "mains", IsAvailable: true,
		Customizations: []catalog.Customization{
			{ID: "cheese", Label: "Extra cheese", Price: 100},
			{ID: "bacon", Label: "Bacon", Price: 150},
		},
	}
	fries = catalog.Product{ID: "p2", Name: "Fries", Price: 300, Category: "sides", IsAvailable: true}
)

func newLedger(t *testing.T, stock map[string]int) inventory.Ledger {
	t.Helper()
	var recs []inventory.Record
	for id, n := range stock {
		recs = append(recs, inventory.Record{ProductID: id, Available: n})
	}
	l, err := inventory.NewLedger(recs)
	require.NoError(t, err)
	return l
}

func TestAddItem_ReservesStock(t *testing.T) {
	ledger := newLedger(t, map[string]int{"p1": 5})
	c := New()

	c, ledger, line, err := c.AddItem(ledger, burger, 3, nil, now)
	require.NoError(t, err)
	assert.Equal(t, 2, ledger.Available("p1"))
	require.Equal(t, 1, c.Len())
	assert.Equal(t, "p1", line.ProductID)
	assert.Equal(t, 3, line.Quantity)
	assert.Equal(t, int64(2400), line.TotalPrice)

	c2, ledger2, _, err := c.AddItem(ledger, burger, 3, nil, now)
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)
	assert.Equal(t, 2, ledger2.Available("p1"))
	assert.Equal(t, c.Lines(), c2.Lines())
}

func TestRemoveItem_ReleasesStock(t *testing.T) {
	ledger := newLedger(t, map[string]int{"p1": 5})
	c, ledger, line, err := New().AddItem(ledger, burger, 3, nil, now)
	require.NoError(t, err)

	c, ledger, err = c.RemoveItem(ledger, line.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, ledger.Available("p1"))
	assert.True(t, c.IsEmpty())

	_, _, err = c.RemoveItem(ledger, line.ID)
	require.ErrorIs(t, err, ErrLineNotFound)
}

func TestAddItem_CustomizationsPriced(t *testing.T) {
	ledger := newLedger(t, map[string]int{"p1": 5})

	_, _, line, err := New().AddItem(ledger, burger, 2, []catalog.Customization{{ID: "cheese"}, {ID: "bacon"}}, now)
	require.NoError(t, err)
	assert.Equal(t, int64((800+100+150)*2), line.TotalPrice)
	assert.Equal(t, int64(100), line.Customizations[0].Price, "price comes from the product, not the request")
}

func TestAddItem_RejectsWithoutReserving(t *testing.T) {
	tests := map[string]struct {
		qty     int
		customs []catalog.Customization
		wantErr error
	}{
		"unknown customization":   {qty: 1, customs: []catalog.Customization{{ID: "truffle"}}, wantErr: ErrUnknownCustomization},
		"duplicate customization": {qty: 1, customs: []catalog.Customization{{ID: "cheese"}, {ID: "cheese"}}, wantErr: ErrDuplicateCustomization},
		"zero quantity":           {qty: 0, wantErr: inventory.ErrInvalidQuantity},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			ledger := newLedger(t, map[string]int{"p1": 5})
			c, next, _, err := New().AddItem(ledger, burger, tt.qty, tt.customs, now)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 5, next.Available("p1"))
			assert.True(t, c.IsEmpty())
		})
	}
}

func TestUpdateQuantity(t *testing.T) {
	ledger := newLedger(t, map[string]int{"p1": 5})
	c, ledger, line, err := New().AddItem(ledger, burger, 2, []catalog.Customization{{ID: "cheese"}}, now)
	require.NoError(t, err)

	c, ledger, err = c.UpdateQuantity(ledger, line.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 1, ledger.Available("p1"))
	got, _ := c.Line(line.ID)
	assert.Equal(t, 4, got.Quantity)
	assert.Equal(t, int64(900*4), got.TotalPrice)

	c2, ledger2, err := c.UpdateQuantity(ledger, line.ID, 6)
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)
	assert.Equal(t, 1, ledger2.Available("p1"))
	unchanged, _ := c2.Line(line.ID)
	assert.Equal(t, 4, unchanged.Quantity)

	c, ledger, err = c.UpdateQuantity(ledger, line.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, ledger.Available("p1"))
	assert.Equal(t, int64(900), c.Total())

	_, _, err = c.UpdateQuantity(ledger, line.ID, 0)
	require.ErrorIs(t, err, inventory.ErrInvalidQuantity)
	_, _, err = c.UpdateQuantity(ledger, "nope", 2)
	require.ErrorIs(t, err, ErrLineNotFound)
}

func TestClearAfterCheckoutKeepsStockConsumed(t *testing.T) {
	ledger := newLedger(t, map[string]int{"p1": 5, "p2": 5})
	c, ledger, _, err := New().AddItem(ledger, burger, 2, nil, now)
	require.NoError(t, err)
	c, ledger, _, err = c.AddItem(ledger, fries, 1, nil, now)
	require.NoError(t, err)

	c = c.ClearAfterCheckout()
	assert.True(t, c.IsEmpty())
	assert.Equal(t, 3, ledger.Available("p1"))
	assert.Equal(t, 4, ledger.Available("p2"))
}

func TestAbandonCartReleasesEverything(t *testing.T) {
	ledger := newLedger(t, map[string]int{"p1": 5, "p2": 5})
	c, ledger, _, err := New().AddItem(ledger, burger, 2, nil, now)
	require.NoError(t, err)
	c, ledger, _, err = c.AddItem(ledger, fries, 1, nil, now)
	require.NoError(t, err)
	c, ledger, _, err = c.AddItem(ledger, burger, 1, nil, now)
	require.NoError(t, err)

	c, ledger, err = c.AbandonCart(ledger)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
	assert.Equal(t, 5, ledger.Available("p1"))
	assert.Equal(t, 5, ledger.Available("p2"))
}

func TestShrinkToGrantedReservations(t *testing.T) {
	ledger := newLedger(t, map[string]int{"p1": 5, "p2": 5})
	c, ledger, _, err := New().AddItem(ledger, burger, 3, []catalog.Customization{{ID: "cheese"}}, now)
	require.NoError(t, err)
	c, ledger, _, err = c.AddItem(ledger, fries, 2, nil, now)
	require.NoError(t, err)
	c, _, _, err = c.AddItem(ledger, burger, 1, nil, now)
	require.NoError(t, err)

	// Remote stock dropped to 2 burgers and 5 fries.
	fresh := newLedger(t, map[string]int{"p1": 2, "p2": 5})
	fresh, granted, depleted := fresh.ApplyReservations(c.Reservations())
	require.Len(t, depleted, 2)

	shrunk := c.ShrinkTo(granted)
	lines := shrunk.Lines()
	require.Len(t, lines, 2, "line granted nothing is dropped")
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, int64(1800), lines[0].TotalPrice)
	assert.Equal(t, 2, lines[1].Quantity)
	assert.Equal(t, 6, c.ItemCount(), "original cart untouched")

	empty, released, err := shrunk.AbandonCart(fresh)
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())
	assert.Equal(t, 2, released.Available("p1"))
	assert.Equal(t, 5, released.Available("p2"))
}

func TestShrinkToIgnoresMismatchedGrants(t *testing.T) {
	ledger := newLedger(t, map[string]int{"p1": 5})
	c, _, _, err := New().AddItem(ledger, burger, 3, nil, now)
	require.NoError(t, err)

	assert.Equal(t, c.Lines(), c.ShrinkTo(nil).Lines())
	assert.Equal(t, c.Lines(), c.ShrinkTo([]inventory.Line{{ProductID: "p2", Quantity: 1}}).Lines())
}

func TestCustomizationEditing(t *testing.T) {
	ledger := newLedger(t, map[string]int{"p1": 5})
	c, _, line, err := New().AddItem(ledger, burger, 2, nil, now)
	require.NoError(t, err)

	c, err = c.AddCustomization(line.ID, "bacon")
	require.NoError(t, err)
	got, _ := c.Line(line.ID)
	assert.Equal(t, int64(950*2), got.TotalPrice)

	_, err = c.AddCustomization(line.ID, "bacon")
	require.ErrorIs(t, err, ErrDuplicateCustomization)
	_, err = c.AddCustomization(line.ID, "truffle")
	require.ErrorIs(t, err, ErrUnknownCustomization)

	c, err = c.RemoveCustomization(line.ID, "bacon")
	require.NoError(t, err)
	got, _ = c.Line(line.ID)
	assert.Equal(t, int64(1600), got.TotalPrice)
	assert.Empty(t, got.Customizations)
}

func TestTotalsAndCounts(t *testing.T) {
	ledger := newLedger(t, map[string]int{"p1": 5, "p2": 5})
	c, ledger, _, err := New().AddItem(ledger, burger, 2, nil, now)
	require.NoError(t, err)
	c, _, _, err = c.AddItem(ledger, fries, 3, nil, now)
	require.NoError(t, err)

	assert.Equal(t, int64(1600+900), c.Total())
	assert.Equal(t, 5, c.ItemCount())
	assert.Equal(t, 2, c.ReservedFor("p1"))
}

func TestLinesAreCopies(t *testing.T) {
	ledger := newLedger(t, map[string]int{"p1": 5})
	c, _, _, err := New().AddItem(ledger, burger, 1, []catalog.Customization{{ID: "cheese"}}, now)
	require.NoError(t, err)

	lines := c.Lines()
	lines[0].Quantity = 99
	lines[0].Customizations[0].Price = 0
	lines[0].Product.Customizations[0].Price = 0

	fresh := c.Lines()
	assert.Equal(t, 1, fresh[0].Quantity)
	assert.Equal(t, int64(100), fresh[0].Customizations[0].Price)
	assert.Equal(t, int64(100), fresh[0].Product.Customizations[0].Price)
}

func TestCartJSONRoundTrip(t *testing.T) {
	ledger := newLedger(t, map[string]int{"p1": 5})
	c, _, _, err := New().AddItem(ledger, burger, 2, []catalog.Customization{{ID: "cheese"}}, now)
	require.NoError(t, err)

	body, err := json.Marshal(c)
	require.NoError(t, err)

	var restored Cart
	require.NoError(t, json.Unmarshal(body, &restored))
	assert.Equal(t, c.Lines(), restored.Lines())

	var bad Cart
	require.ErrorIs(t, json.Unmarshal([]byte(`[{"id":"x","productId":"p1","quantity":0}]`), &bad), ErrInvalidLine)
}

// For any edit sequence without checkout, stock held by the ledger plus stock
// held by cart lines equals the stock at session start.
func TestConservationUnderRandomEdits(t *testing.T) {
	start := map[string]int{"p1": 7, "p2": 4}
	products := []catalog.Product{burger, fries}
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 50; run++ {
		ledger := newLedger(t, start)
		c := New()

		for step := 0; step < 40; step++ {
			switch op := rng.Intn(4); {
			case op <= 1 || c.IsEmpty():
				p := products[rng.Intn(len(products))]
				c, ledger, _, _ = c.AddItem(ledger, p, 1+rng.Intn(4), nil, now)
			case op == 2:
				lines := c.Lines()
				c, ledger, _ = c.RemoveItem(ledger, lines[rng.Intn(len(lines))].ID)
			default:
				lines := c.Lines()
				c, ledger, _ = c.UpdateQuantity(ledger, lines[rng.Intn(len(lines))].ID, 1+rng.Intn(5))
			}

			for id, initial := range start {
				require.Equal(t, initial, ledger.Available(id)+c.ReservedFor(id), "run %d step %d product %s", run, step, id)
				require.GreaterOrEqual(t, ledger.Available(id), 0)
			}
		}
	}
}
