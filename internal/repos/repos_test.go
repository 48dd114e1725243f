package repos_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brewpos/internal/apperr"
	"brewpos/internal/domain"
	"brewpos/internal/repos"
)

func seededDB(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()
	db, err := repos.OpenDB(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, repos.Seed(ctx, db))
	return db
}

func TestSeedIsIdempotent(t *testing.T) {
	db := seededDB(t)
	require.NoError(t, repos.Seed(context.Background(), db))

	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM inventory_items WHERE name = 'Milk'`))
	assert.Equal(t, 1, n)
}

func TestInventoryRepo_ByNameIgnoresCase(t *testing.T) {
	db := seededDB(t)
	inv := repos.NewInventoryRepo(db)

	it, err := inv.ByName(context.Background(), "  coffee beans ")
	require.NoError(t, err)
	assert.Equal(t, "Coffee Beans", it.Name)
	assert.Equal(t, "g", it.BaseUnit)

	_, err = inv.ByName(context.Background(), "Oat Milk")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestInventoryRepo_DeductIsConditional(t *testing.T) {
	ctx := context.Background()
	db := seededDB(t)
	store := repos.NewStore(db)

	_, err := db.Exec(`UPDATE inventory_items SET on_hand_qty = 100 WHERE name IN ('Milk','Coffee Beans')`)
	require.NoError(t, err)

	// Milk succeeds, beans fail: nothing from the line may stick.
	_, err = store.DeductInventory(ctx, 1, []domain.DeductionEntry{
		{ItemName: "Milk", Size: domain.SizeMedium, ConvertedAmount: 50, BaseUnit: "ml"},
		{ItemName: "Coffee Beans", Size: domain.SizeMedium, ConvertedAmount: 150, BaseUnit: "g"},
	}, "Latte")
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeInsufficientStock))

	milk, err := store.Inventory.ByName(ctx, "Milk")
	require.NoError(t, err)
	assert.Equal(t, 100.0, milk.OnHandQty)

	rows, err := store.DeductInventory(ctx, 1, []domain.DeductionEntry{
		{ItemName: "Milk", Size: domain.SizeSmall, ConvertedAmount: 30, BaseUnit: "ml"},
		{ItemName: "Milk", Size: domain.SizeMedium, ConvertedAmount: 40, BaseUnit: "ml"},
	}, "Latte")
	require.NoError(t, err)
	assert.EqualValues(t, 1, rows)

	milk, err = store.Inventory.ByName(ctx, "Milk")
	require.NoError(t, err)
	assert.Equal(t, 30.0, milk.OnHandQty)

	logged, err := store.Inventory.Deductions(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, logged, 2)
}

// Summed conversions that land a hair above on-hand must still deduct, the
// same way the stock check lets them through.
func TestInventoryRepo_DeductAbsorbsFloatNoise(t *testing.T) {
	ctx := context.Background()
	db := seededDB(t)
	store := repos.NewStore(db)

	_, err := db.Exec(`UPDATE inventory_items SET on_hand_qty = 0.3 WHERE name = 'Milk'`)
	require.NoError(t, err)
	require.Greater(t, 0.1+0.2, 0.3)

	_, err = store.DeductInventory(ctx, 1, []domain.DeductionEntry{
		{ItemName: "Milk", Size: domain.SizeSmall, ConvertedAmount: 0.1, BaseUnit: "ml"},
		{ItemName: "Milk", Size: domain.SizeMedium, ConvertedAmount: 0.2, BaseUnit: "ml"},
	}, "Latte")
	require.NoError(t, err)

	milk, err := store.Inventory.ByName(ctx, "Milk")
	require.NoError(t, err)
	assert.Equal(t, 0.0, milk.OnHandQty)

	// A real shortfall is still refused.
	_, err = store.DeductInventory(ctx, 1, []domain.DeductionEntry{
		{ItemName: "Milk", Size: domain.SizeSmall, ConvertedAmount: 0.001, BaseUnit: "ml"},
	}, "Latte")
	assert.True(t, apperr.IsCode(err, apperr.CodeInsufficientStock))
}

func TestInventoryRepo_DeductUnknownItem(t *testing.T) {
	store := repos.NewStore(seededDB(t))
	_, err := store.DeductInventory(context.Background(), 1, []domain.DeductionEntry{
		{ItemName: "Oat Milk", Size: domain.SizeLarge, ConvertedAmount: 1, BaseUnit: "ml"},
	}, "Latte")
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))
}

func TestInventoryRepo_SetQty(t *testing.T) {
	ctx := context.Background()
	inv := repos.NewInventoryRepo(seededDB(t))

	it, err := inv.ByName(ctx, "Straw")
	require.NoError(t, err)
	require.NoError(t, inv.SetQty(ctx, it.ID, 42))

	it, err = inv.Get(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, 42.0, it.OnHandQty)
	assert.NotEmpty(t, it.UpdatedAt)

	assert.True(t, apperr.IsCode(inv.SetQty(ctx, it.ID, -1), apperr.CodeValidation))
	assert.True(t, apperr.IsCode(inv.SetQty(ctx, 9999, 1), apperr.CodeNotFound))
}

func TestProductRepo_LinksCarryPerSizePortions(t *testing.T) {
	ctx := context.Background()
	prods := repos.NewProductRepo(seededDB(t))

	all, err := prods.List(ctx)
	require.NoError(t, err)
	var latte domain.Product
	for _, p := range all {
		if p.Name == "Latte" {
			latte = p
		}
	}
	require.NotZero(t, latte.ID)
	assert.True(t, latte.OffersSize(domain.SizeSmall))
	assert.True(t, latte.MediumPrice.Equal(decimal.RequireFromString("130")))

	links, err := prods.Links(ctx, latte.ID)
	require.NoError(t, err)
	require.Len(t, links, 4)

	byName := map[string]domain.IngredientLink{}
	for _, l := range links {
		byName[l.ItemName] = l
	}
	beans := byName["Coffee Beans"]
	assert.Equal(t, domain.RoleIngredient, beans.Role)
	assert.Equal(t, "g", beans.ItemUnit)
	assert.Equal(t, domain.Portion{Amount: 30, Unit: "g"}, beans.PerSize[domain.SizeMedium])
	assert.Equal(t, domain.RoleAddon, byName["Caramel Syrup"].Role)
}

func TestProductRepo_AddLinkRoundTrips(t *testing.T) {
	ctx := context.Background()
	db := seededDB(t)
	prods := repos.NewProductRepo(db)
	inv := repos.NewInventoryRepo(db)

	var matcha int64
	require.NoError(t, db.Get(&matcha, `SELECT id FROM products WHERE name = 'Matcha Milk Tea'`))
	cream, err := inv.ByName(ctx, "whipped cream")
	require.NoError(t, err)

	id, err := prods.AddLink(ctx, domain.IngredientLink{
		ProductID:       matcha,
		InventoryItemID: cream.ID,
		Role:            domain.RoleAddon,
		Shared:          domain.Portion{Amount: 30, Unit: "ml"},
		PerSize:         map[domain.Size]domain.Portion{domain.SizeLarge: {Amount: 45, Unit: "ml"}},
	})
	require.NoError(t, err)
	assert.NotZero(t, id)

	links, err := prods.Links(ctx, matcha)
	require.NoError(t, err)
	var got domain.IngredientLink
	for _, l := range links {
		if l.InventoryItemID == cream.ID {
			got = l
		}
	}
	assert.Equal(t, id, got.ID)
	assert.Equal(t, domain.RoleAddon, got.Role)
	assert.Equal(t, "Whipped Cream", got.ItemName)
	assert.Equal(t, domain.Portion{Amount: 30, Unit: "ml"}, got.Shared)
	assert.Equal(t, domain.Portion{Amount: 45, Unit: "ml"}, got.PerSize[domain.SizeLarge])
	assert.NotContains(t, got.PerSize, domain.SizeMedium)
}

func TestStore_SaveTransactionAndGet(t *testing.T) {
	ctx := context.Background()
	store := repos.NewStore(seededDB(t))

	rec := domain.TransactionRecord{
		SessionID:  "sess-1",
		TerminalID: "T1",
		CashierID:  "c-7",
		CreatedAt:  time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		Total:      decimal.RequireFromString("260"),
		AmountPaid: decimal.RequireFromString("300"),
		Method:     domain.MethodCash,
	}
	lines := []domain.CartLine{{
		ProductID:   1,
		ProductName: "Latte",
		Qty:         map[domain.Size]int{domain.SizeMedium: 2},
		UnitPrice:   map[domain.Size]decimal.Decimal{domain.SizeMedium: decimal.RequireFromString("130")},
	}}

	saved, err := store.SaveTransaction(ctx, rec, lines)
	require.NoError(t, err)
	assert.NotZero(t, saved.ID)

	got, err := store.Transactions.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", got.SessionID)
	assert.True(t, got.Total.Equal(rec.Total))
	assert.True(t, got.CreatedAt.Equal(rec.CreatedAt))
	require.Len(t, got.LineItems, 1)
	assert.Equal(t, domain.SizeMedium, got.LineItems[0].Size)
	assert.Equal(t, 2, got.LineItems[0].Qty)

	latest, err := store.Transactions.ListLatest(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, latest, 1)
}

func TestStore_SaveTransactionMergesRepeatedSizes(t *testing.T) {
	ctx := context.Background()
	store := repos.NewStore(seededDB(t))

	price := map[domain.Size]decimal.Decimal{
		domain.SizeMedium: decimal.RequireFromString("130"),
		domain.SizeLarge:  decimal.RequireFromString("150"),
	}
	lines := []domain.CartLine{
		{ProductID: 1, ProductName: "Latte", Qty: map[domain.Size]int{domain.SizeMedium: 1}, UnitPrice: price},
		{
			ProductID:   1,
			ProductName: "Latte",
			Qty:         map[domain.Size]int{domain.SizeMedium: 2, domain.SizeLarge: 1},
			Addons: map[domain.Size][]domain.AddonSelection{
				domain.SizeMedium: {{InventoryItemID: 3, Selected: true, Quantity: 1}},
			},
			UnitPrice: price,
		},
	}

	saved, err := store.SaveTransaction(ctx, domain.TransactionRecord{
		SessionID:  "sess-dup",
		Method:     domain.MethodGCash,
		Total:      decimal.RequireFromString("540"),
		AmountPaid: decimal.RequireFromString("540"),
	}, lines)
	require.NoError(t, err)

	got, err := store.Transactions.Get(ctx, saved.ID)
	require.NoError(t, err)
	require.Len(t, got.LineItems, 2)
	assert.Equal(t, domain.SizeMedium, got.LineItems[0].Size)
	assert.Equal(t, 3, got.LineItems[0].Qty)
	assert.Equal(t, domain.SizeLarge, got.LineItems[1].Size)
	assert.Equal(t, 1, got.LineItems[1].Qty)
}

func TestStore_AtomicRollsBack(t *testing.T) {
	ctx := context.Background()
	store := repos.NewStore(seededDB(t))

	err := store.Atomic(ctx, func(ctx context.Context) error {
		if _, err := store.SaveTransaction(ctx, domain.TransactionRecord{
			SessionID: "sess-rb", Method: domain.MethodGCash,
		}, nil); err != nil {
			return err
		}
		_, err := store.DeductInventory(ctx, 1, []domain.DeductionEntry{
			{ItemName: "Straw", ConvertedAmount: 1e9, BaseUnit: "pcs"},
		}, "Latte")
		return err
	})
	require.Error(t, err)

	n, err := store.Transactions.CountBySession(ctx, "sess-rb")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_GetInventoryItemByNameMissing(t *testing.T) {
	store := repos.NewStore(seededDB(t))
	it, err := store.GetInventoryItemByName(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, it)
}
