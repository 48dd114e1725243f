package repos

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"brewpos/internal/domain"
)

//go:embed migrations/*.sql
var migrations embed.FS

// OpenDB opens the terminal's SQLite store and applies pending migrations.
// The pool is pinned to one connection: SQLite serializes writers anyway and
// ":memory:" databases live per connection.
func OpenDB(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	for _, pragma := range []string{
		`PRAGMA foreign_keys = ON`,
		`PRAGMA busy_timeout = 5000`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func migrate(ctx context.Context, db *sqlx.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db.DB, fsys)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Seed inserts the demo menu if the store is empty. Safe to run every start.
func Seed(ctx context.Context, db *sqlx.DB) error {
	var n int
	if err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM inventory_items`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT INTO inventory_items(name,category,on_hand_qty,min_qty,max_qty,base_unit) VALUES
	  ('Coffee Beans','Coffee',5000,500,10000,'g'),
	  ('Milk','Dairy',20000,2000,40000,'ml'),
	  ('Caramel Syrup','Syrup',3000,300,6000,'ml'),
	  ('Vanilla Syrup','Syrup',3000,300,6000,'ml'),
	  ('Matcha Powder','Tea',1000,100,2000,'g'),
	  ('Brown Sugar','Sweetener',4000,400,8000,'g'),
	  ('Tapioca Pearls','Toppings',5000,500,10000,'g'),
	  ('Whipped Cream','Dairy',2000,200,4000,'ml'),
	  ('Small Cup','Packaging',300,50,1000,'pcs'),
	  ('Medium Cup','Packaging',300,50,1000,'pcs'),
	  ('Large Cup','Packaging',300,50,1000,'pcs'),
	  ('Straw','Packaging',1000,100,3000,'pcs')`); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO products(name,category,small_price,medium_price,large_price) VALUES
	  ('Latte','Coffee','110.00','130.00','150.00'),
	  ('Caramel Macchiato','Coffee','125.00','145.00','165.00'),
	  ('Matcha Milk Tea','Milk Tea',NULL,'120.00','140.00'),
	  ('Brown Sugar Milk Tea','Milk Tea',NULL,'115.00','135.00')`); err != nil {
		return err
	}

	ids := func(table string) (map[string]int64, error) {
		var rows []struct {
			ID   int64  `db:"id"`
			Name string `db:"name"`
		}
		if err := tx.SelectContext(ctx, &rows, `SELECT id, name FROM `+table); err != nil {
			return nil, err
		}
		out := make(map[string]int64, len(rows))
		for _, r := range rows {
			out[r.Name] = r.ID
		}
		return out, nil
	}
	prodIDs, err := ids("products")
	if err != nil {
		return err
	}
	itemIDs, err := ids("inventory_items")
	if err != nil {
		return err
	}

	ml := func(a float64) domain.Portion { return domain.Portion{Amount: a, Unit: "ml"} }
	g := func(a float64) domain.Portion { return domain.Portion{Amount: a, Unit: "g"} }
	type seedLink struct {
		prod, item string
		role       domain.Role
		shared     domain.Portion
		perSize    map[domain.Size]domain.Portion
	}
	// Latte: shared 1-serving defaults for milk, per-size overrides for beans.
	links := []seedLink{
		{"Latte", "Coffee Beans", domain.RoleIngredient, domain.Portion{}, map[domain.Size]domain.Portion{
			domain.SizeSmall: g(18), domain.SizeMedium: g(30), domain.SizeLarge: g(36)}},
		{"Latte", "Milk", domain.RoleIngredient, ml(200), map[domain.Size]domain.Portion{
			domain.SizeSmall: ml(150), domain.SizeLarge: {Amount: 0.3, Unit: "L"}}},
		{"Latte", "Caramel Syrup", domain.RoleAddon, ml(15), nil},
		{"Latte", "Whipped Cream", domain.RoleAddon, ml(20), nil},
		{"Caramel Macchiato", "Coffee Beans", domain.RoleIngredient, domain.Portion{Amount: 0.03, Unit: "kg"}, map[domain.Size]domain.Portion{
			domain.SizeLarge: {Amount: 0.036, Unit: "kg"}}},
		{"Caramel Macchiato", "Milk", domain.RoleIngredient, ml(200), map[domain.Size]domain.Portion{domain.SizeLarge: ml(250)}},
		{"Caramel Macchiato", "Caramel Syrup", domain.RoleIngredient, ml(20), map[domain.Size]domain.Portion{domain.SizeLarge: ml(30)}},
		{"Caramel Macchiato", "Vanilla Syrup", domain.RoleAddon, ml(10), nil},
		{"Matcha Milk Tea", "Matcha Powder", domain.RoleIngredient, g(10), map[domain.Size]domain.Portion{domain.SizeLarge: g(15)}},
		{"Matcha Milk Tea", "Milk", domain.RoleIngredient, ml(250), map[domain.Size]domain.Portion{
			domain.SizeLarge: {Amount: 0.35, Unit: "L"}}},
		{"Matcha Milk Tea", "Tapioca Pearls", domain.RoleAddon, g(40), nil},
		{"Brown Sugar Milk Tea", "Brown Sugar", domain.RoleIngredient, g(25), map[domain.Size]domain.Portion{domain.SizeLarge: g(35)}},
		{"Brown Sugar Milk Tea", "Milk", domain.RoleIngredient, ml(250), map[domain.Size]domain.Portion{domain.SizeLarge: ml(350)}},
		{"Brown Sugar Milk Tea", "Tapioca Pearls", domain.RoleIngredient, g(50), map[domain.Size]domain.Portion{domain.SizeLarge: g(70)}},
	}
	prods := NewProductRepo(db)
	txCtx := withTx(ctx, tx)
	for _, l := range links {
		if _, err := prods.AddLink(txCtx, domain.IngredientLink{
			ProductID:       prodIDs[l.prod],
			InventoryItemID: itemIDs[l.item],
			Role:            l.role,
			Shared:          l.shared,
			PerSize:         l.perSize,
		}); err != nil {
			return fmt.Errorf("seed %s/%s: %w", l.prod, l.item, err)
		}
	}

	return tx.Commit()
}
