package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// defaultQuantity is applied to every line item; events carry no quantities.
const defaultQuantity = 1

// BuildItems prices one line item per product, preserving the input order.
func BuildItems(products []Product) []OrderLineItem {
	items := make([]OrderLineItem, 0, len(products))
	for _, p := range products {
		items = append(items, OrderLineItem{
			ProductID:   p.ProductID,
			Name:        p.Name,
			Description: p.Description,
			UnitPrice:   p.Price,
			Quantity:    defaultQuantity,
			Subtotal:    p.Price.Mul(decimal.NewFromInt(defaultQuantity)),
		})
	}
	return items
}

// Total sums the subtotals exactly.
func Total(items []OrderLineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal)
	}
	return total
}

// NewAssembledOrder builds a COMPLETED order for an active customer and a
// fully resolved product set.
func NewAssembledOrder(evt InboundOrderEvent, customer Customer, products []Product, now time.Time) AssembledOrder {
	items := BuildItems(products)
	return AssembledOrder{
		OrderID:       evt.OrderID,
		CustomerID:    evt.CustomerID,
		CustomerName:  customer.Name,
		CustomerEmail: customer.Email,
		Items:         items,
		TotalAmount:   Total(items),
		Status:        StatusCompleted,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
