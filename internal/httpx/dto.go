package httpx

import (
	"encoding/json"
	"time"

	"github.com/jcmexdev/order-worker/internal/coordinator/runlog"
	"github.com/jcmexdev/order-worker/internal/domain"
)

type OrderResponse struct {
	ID            string              `json:"id"`
	OrderID       string              `json:"orderId"`
	CustomerID    string              `json:"customerId"`
	CustomerName  string              `json:"customerName"`
	CustomerEmail string              `json:"customerEmail"`
	Status        string              `json:"status"`
	TotalAmount   json.Number         `json:"totalAmount"`
	Items         []OrderItemResponse `json:"items"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

type OrderItemResponse struct {
	ProductID   string      `json:"productId"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	UnitPrice   json.Number `json:"unitPrice"`
	Quantity    int         `json:"quantity"`
	Subtotal    json.Number `json:"subtotal"`
}

type RunResponse struct {
	RunID      string    `json:"runId"`
	OrderID    string    `json:"orderId"`
	CustomerID string    `json:"customerId"`
	State      string    `json:"state"`
	Reason     string    `json:"reason,omitempty"`
	TraceID    string    `json:"traceId,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func mapOrderToResponse(o domain.StoredOrder) OrderResponse {
	items := make([]OrderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = OrderItemResponse{
			ProductID:   it.ProductID,
			Name:        it.Name,
			Description: it.Description,
			UnitPrice:   json.Number(it.UnitPrice.StringFixed(2)),
			Quantity:    it.Quantity,
			Subtotal:    json.Number(it.Subtotal.StringFixed(2)),
		}
	}
	return OrderResponse{
		ID:            o.ID,
		OrderID:       o.OrderID,
		CustomerID:    o.CustomerID,
		CustomerName:  o.CustomerName,
		CustomerEmail: o.CustomerEmail,
		Status:        string(o.Status),
		TotalAmount:   json.Number(o.TotalAmount.StringFixed(2)),
		Items:         items,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

func mapRunToResponse(e *runlog.Entry) RunResponse {
	return RunResponse{
		RunID:      e.RunID,
		OrderID:    e.OrderID,
		CustomerID: e.CustomerID,
		State:      e.State,
		Reason:     e.Reason,
		TraceID:    e.TraceID,
		UpdatedAt:  e.UpdatedAt,
	}
}
