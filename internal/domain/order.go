package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// InboundOrderEvent is the payload published on the orders topic.
// The same event may be delivered more than once.
type InboundOrderEvent struct {
	OrderID    string   `json:"orderId"`
	CustomerID string   `json:"customerId"`
	ProductIDs []string `json:"productIds"`
}

// DecodeInboundOrderEvent parses a raw message value. Any failure is wrapped in
// ErrMalformedMessage so callers can treat it as terminal.
func DecodeInboundOrderEvent(data []byte) (InboundOrderEvent, error) {
	var evt InboundOrderEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return InboundOrderEvent{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	evt.OrderID = strings.TrimSpace(evt.OrderID)
	evt.CustomerID = strings.TrimSpace(evt.CustomerID)

	var missing []string
	if evt.OrderID == "" {
		missing = append(missing, "orderId")
	}
	if evt.CustomerID == "" {
		missing = append(missing, "customerId")
	}
	if len(evt.ProductIDs) == 0 {
		missing = append(missing, "productIds")
	}
	for i, id := range evt.ProductIDs {
		if strings.TrimSpace(id) == "" {
			missing = append(missing, fmt.Sprintf("productIds[%d]", i))
		}
	}
	if len(missing) > 0 {
		return InboundOrderEvent{}, fmt.Errorf("%w: missing or empty %s", ErrMalformedMessage, strings.Join(missing, ", "))
	}
	return evt, nil
}

// Customer is a read-only snapshot served by the catalog API.
type Customer struct {
	CustomerID string    `json:"customerId"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone,omitempty"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"createdAt,omitzero"`
	UpdatedAt  time.Time `json:"updatedAt,omitzero"`
}

// Product is a read-only snapshot served by the catalog API.
type Product struct {
	ProductID   string          `json:"productId"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"createdAt,omitzero"`
	UpdatedAt   time.Time       `json:"updatedAt,omitzero"`
}

type OrderLineItem struct {
	ProductID   string          `json:"productId"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Quantity    int             `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type OrderStatus string

const (
	StatusCompleted OrderStatus = "COMPLETED"
)

// AssembledOrder is the priced order produced by one successful pipeline run.
type AssembledOrder struct {
	OrderID       string          `json:"orderId"`
	CustomerID    string          `json:"customerId"`
	CustomerName  string          `json:"customerName"`
	CustomerEmail string          `json:"customerEmail"`
	Items         []OrderLineItem `json:"items"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	Status        OrderStatus     `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// StoredOrder is an AssembledOrder after persistence.
// Created is false when the store already held a record for the same OrderID.
type StoredOrder struct {
	ID string `json:"id"`
	AssembledOrder
	Created bool `json:"-"`
}
