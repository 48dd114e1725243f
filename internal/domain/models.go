package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Size string

const (
	SizeSmall  Size = "Small"
	SizeMedium Size = "Medium"
	SizeLarge  Size = "Large"
)

// Sizes lists the tiers in menu order.
var Sizes = []Size{SizeSmall, SizeMedium, SizeLarge}

func ParseSize(s string) (Size, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "small", "s":
		return SizeSmall, true
	case "medium", "m":
		return SizeMedium, true
	case "large", "l":
		return SizeLarge, true
	}
	return "", false
}

type Role string

const (
	RoleIngredient Role = "ingredient"
	RoleAddon      Role = "addon"
)

type InventoryItem struct {
	ID        int64   `db:"id" json:"id"`
	Name      string  `db:"name" json:"name"`
	Category  string  `db:"category" json:"category"`
	OnHandQty float64 `db:"on_hand_qty" json:"onHandQty"`
	MinQty    float64 `db:"min_qty" json:"minQty"`
	MaxQty    float64 `db:"max_qty" json:"maxQty"`
	BaseUnit  string  `db:"base_unit" json:"baseUnit"` // g | ml | pcs
	UpdatedAt string  `db:"updated_at" json:"updatedAt,omitempty"`
}

// LowStock reports whether the item sits at or under its reorder level.
func (i InventoryItem) LowStock() bool {
	return i.MinQty > 0 && i.OnHandQty <= i.MinQty
}

type Product struct {
	ID          int64               `db:"id" json:"id"`
	Name        string              `db:"name" json:"name"`
	Category    string              `db:"category" json:"category"`
	SmallPrice  decimal.NullDecimal `db:"small_price" json:"smallPrice"`
	MediumPrice decimal.Decimal     `db:"medium_price" json:"mediumPrice"`
	LargePrice  decimal.Decimal     `db:"large_price" json:"largePrice"`
	Active      bool                `db:"active" json:"active"`
}

// IsCoffeeFamily reports whether the category sells a Small tier.
func IsCoffeeFamily(category string) bool {
	return strings.Contains(strings.ToLower(category), "coffee")
}

func (p Product) OffersSize(s Size) bool {
	switch s {
	case SizeSmall:
		return p.SmallPrice.Valid && IsCoffeeFamily(p.Category)
	case SizeMedium, SizeLarge:
		return true
	}
	return false
}

func (p Product) Price(s Size) (decimal.Decimal, bool) {
	switch s {
	case SizeSmall:
		if p.OffersSize(SizeSmall) {
			return p.SmallPrice.Decimal, true
		}
	case SizeMedium:
		return p.MediumPrice, true
	case SizeLarge:
		return p.LargePrice, true
	}
	return decimal.Zero, false
}

// Portion is an amount expressed in a possibly non-canonical unit.
type Portion struct {
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
}

// IngredientLink binds a product to an inventory item. ItemName and ItemUnit
// are joined from the inventory item when the link is loaded.
type IngredientLink struct {
	ID              int64            `json:"id"`
	ProductID       int64            `json:"productId"`
	InventoryItemID int64            `json:"inventoryItemId"`
	ItemName        string           `json:"itemName"`
	ItemUnit        string           `json:"itemUnit"`
	Role            Role             `json:"role"`
	Shared          Portion          `json:"shared"`
	PerSize         map[Size]Portion `json:"perSize,omitempty"`
}

type AddonSelection struct {
	InventoryItemID int64 `json:"inventoryItemId"`
	Selected        bool  `json:"selected"`
	Quantity        int   `json:"quantity"`
}

type CartLine struct {
	ProductID   int64                     `json:"productId"`
	ProductName string                    `json:"productName"`
	Qty         map[Size]int              `json:"qty"`
	Addons      map[Size][]AddonSelection `json:"addons,omitempty"`
	UnitPrice   map[Size]decimal.Decimal  `json:"unitPrice,omitempty"`
}

func (l CartLine) TotalQty() int {
	n := 0
	for _, q := range l.Qty {
		if q > 0 {
			n += q
		}
	}
	return n
}

// Subtotal prices the line from UnitPrice; sizes without a price count as zero.
func (l CartLine) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for size, q := range l.Qty {
		if q <= 0 {
			continue
		}
		if p, ok := l.UnitPrice[size]; ok {
			total = total.Add(p.Mul(decimal.NewFromInt(int64(q))))
		}
	}
	return total
}

// QtyTolerance absorbs float noise from kg/L scaling when demand is compared
// with on-hand stock. Stock checks and the conditional decrement share it.
const QtyTolerance = 1e-9

type DeductionKey struct {
	ItemName string
	Size     Size
}

type DeductionEntry struct {
	ItemName         string  `json:"itemName"`
	Size             Size    `json:"size"`
	ConvertedAmount  float64 `json:"convertedAmount"`
	BaseUnit         string  `json:"baseUnit"`
	OriginalAmount   float64 `json:"originalAmount"`
	OriginalUnit     string  `json:"originalUnit"`
	ConversionFailed bool    `json:"conversionFailed,omitempty"`
}

type PaymentMethod string

const (
	MethodCash  PaymentMethod = "Cash"
	MethodGCash PaymentMethod = "GCash"
	MethodBank  PaymentMethod = "Bank"
)

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cash":
		return MethodCash, true
	case "gcash":
		return MethodGCash, true
	case "bank", "card", "bank transfer":
		return MethodBank, true
	}
	return "", false
}

type TransactionLine struct {
	ProductID   int64           `db:"product_id" json:"productId"`
	ProductName string          `db:"product_name" json:"productName"`
	Size        Size            `db:"size" json:"size"`
	Qty         int             `db:"qty" json:"qty"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unitPrice"`
}

type TransactionRecord struct {
	ID         int64             `db:"id" json:"id"`
	SessionID  string            `db:"session_id" json:"sessionId"`
	TerminalID string            `db:"terminal_id" json:"terminalId"`
	CashierID  string            `db:"cashier_id" json:"cashierId"`
	CreatedAt  time.Time         `db:"created_at" json:"createdAt"`
	Total      decimal.Decimal   `db:"total" json:"total"`
	AmountPaid decimal.Decimal   `db:"amount_paid" json:"amountPaid"`
	Method     PaymentMethod     `db:"method" json:"method"`
	LineItems  []TransactionLine `db:"-" json:"lineItems"`
}

// SessionContext identifies the terminal and cashier a controller works for.
type SessionContext struct {
	TerminalID  string
	CashierID   string
	CashierName string
}
