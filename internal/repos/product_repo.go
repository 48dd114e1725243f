package repos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"brewpos/internal/domain"
	"brewpos/internal/units"
)

type ProductRepo struct{ db *sqlx.DB }

func NewProductRepo(db *sqlx.DB) *ProductRepo { return &ProductRepo{db: db} }

const productCols = `id, name, category, small_price, medium_price, large_price, active`

func (r *ProductRepo) List(ctx context.Context) ([]domain.Product, error) {
	var out []domain.Product
	err := sqlx.SelectContext(ctx, conn(ctx, r.db), &out, `
		SELECT `+productCols+`
		FROM products
		WHERE active = 1
		ORDER BY category, name
	`)
	return out, err
}

func (r *ProductRepo) Get(ctx context.Context, id int64) (domain.Product, error) {
	var p domain.Product
	err := sqlx.GetContext(ctx, conn(ctx, r.db), &p, `
		SELECT `+productCols+`
		FROM products
		WHERE id = ?
	`, id)
	return p, err
}

type linkRow struct {
	ID              int64   `db:"id"`
	ProductID       int64   `db:"product_id"`
	InventoryItemID int64   `db:"inventory_item_id"`
	ItemName        string  `db:"item_name"`
	ItemUnit        string  `db:"item_unit"`
	Role            string  `db:"role"`
	SharedAmount    float64 `db:"shared_amount"`
	SharedUnit      string  `db:"shared_unit"`
	SmallAmount     float64 `db:"small_amount"`
	SmallUnit       string  `db:"small_unit"`
	MediumAmount    float64 `db:"medium_amount"`
	MediumUnit      string  `db:"medium_unit"`
	LargeAmount     float64 `db:"large_amount"`
	LargeUnit       string  `db:"large_unit"`
}

func (lr linkRow) link() domain.IngredientLink {
	l := domain.IngredientLink{
		ID:              lr.ID,
		ProductID:       lr.ProductID,
		InventoryItemID: lr.InventoryItemID,
		ItemName:        lr.ItemName,
		ItemUnit:        units.Normalize(lr.ItemUnit),
		Role:            domain.Role(lr.Role),
		Shared:          domain.Portion{Amount: lr.SharedAmount, Unit: lr.SharedUnit},
		PerSize:         map[domain.Size]domain.Portion{},
	}
	for size, p := range map[domain.Size]domain.Portion{
		domain.SizeSmall:  {Amount: lr.SmallAmount, Unit: lr.SmallUnit},
		domain.SizeMedium: {Amount: lr.MediumAmount, Unit: lr.MediumUnit},
		domain.SizeLarge:  {Amount: lr.LargeAmount, Unit: lr.LargeUnit},
	} {
		if p.Amount > 0 || p.Unit != "" {
			l.PerSize[size] = p
		}
	}
	return l
}

// Links returns the product's ingredient and addon rows with the linked
// inventory item's name and base unit joined in.
func (r *ProductRepo) Links(ctx context.Context, productID int64) ([]domain.IngredientLink, error) {
	var rows []linkRow
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &rows, `
		SELECT pi.id, pi.product_id, pi.inventory_item_id,
		       i.name AS item_name, i.base_unit AS item_unit, pi.role,
		       pi.shared_amount, pi.shared_unit,
		       pi.small_amount, pi.small_unit,
		       pi.medium_amount, pi.medium_unit,
		       pi.large_amount, pi.large_unit
		FROM product_ingredients pi
		JOIN inventory_items i ON i.id = pi.inventory_item_id
		WHERE pi.product_id = ?
		ORDER BY pi.role DESC, i.name
	`, productID); err != nil {
		return nil, err
	}
	out := make([]domain.IngredientLink, 0, len(rows))
	for _, lr := range rows {
		out = append(out, lr.link())
	}
	return out, nil
}

// AddLink attaches an inventory item to a product's recipe.
func (r *ProductRepo) AddLink(ctx context.Context, l domain.IngredientLink) (int64, error) {
	per := func(s domain.Size) domain.Portion { return l.PerSize[s] }
	res, err := conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO product_ingredients
		  (product_id, inventory_item_id, role, shared_amount, shared_unit,
		   small_amount, small_unit, medium_amount, medium_unit, large_amount, large_unit)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, l.ProductID, l.InventoryItemID, string(l.Role), l.Shared.Amount, l.Shared.Unit,
		per(domain.SizeSmall).Amount, per(domain.SizeSmall).Unit,
		per(domain.SizeMedium).Amount, per(domain.SizeMedium).Unit,
		per(domain.SizeLarge).Amount, per(domain.SizeLarge).Unit)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
