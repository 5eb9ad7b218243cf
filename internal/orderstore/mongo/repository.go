// Package mongo provides the MongoDB implementation of orderstore.Repository.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	driver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jcmexdev/order-worker/internal/domain"
)

const uniqueOrderIndex = "idx_orders_orderId_unique"

// Money is computed with decimal and stored as BSON double, the type the
// orders collection validator requires.
type itemDocument struct {
	ProductID   string  `bson:"productId"`
	Name        string  `bson:"name"`
	Description string  `bson:"description"`
	Price       float64 `bson:"price"`
	Quantity    int32   `bson:"quantity"`
	Subtotal    float64 `bson:"subtotal"`
}

type orderDocument struct {
	ID            string         `bson:"_id"`
	OrderID       string         `bson:"orderId"`
	CustomerID    string         `bson:"customerId"`
	CustomerName  string         `bson:"customerName"`
	CustomerEmail string         `bson:"customerEmail"`
	Items         []itemDocument `bson:"items"`
	TotalAmount   float64        `bson:"totalAmount"`
	Status        string         `bson:"status"`
	CreatedAt     time.Time      `bson:"createdAt"`
	UpdatedAt     time.Time      `bson:"updatedAt"`
}

type Repository struct {
	coll *driver.Collection
}

// New returns a repository over coll after making sure its indexes exist.
func New(ctx context.Context, coll *driver.Collection) (*Repository, error) {
	r := &Repository{coll: coll}
	if err := r.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repository) ensureIndexes(ctx context.Context) error {
	models := []driver.IndexModel{
		{
			Keys:    bson.D{{Key: "orderId", Value: 1}},
			Options: options.Index().SetName(uniqueOrderIndex).SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "customerId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("idx_orders_customer_created"),
		},
	}
	if _, err := r.coll.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("mongo: create order indexes: %w", err)
	}
	return nil
}

func (r *Repository) Save(ctx context.Context, order domain.AssembledOrder) (domain.StoredOrder, error) {
	doc := toDocument(uuid.NewString(), order)

	_, err := r.coll.InsertOne(ctx, doc)
	if err == nil {
		return fromDocument(doc, true), nil
	}
	if !driver.IsDuplicateKeyError(err) {
		return domain.StoredOrder{}, fmt.Errorf("mongo: insert order %q: %w", order.OrderID, err)
	}

	existing, err := r.GetByOrderID(ctx, order.OrderID)
	if err != nil {
		return domain.StoredOrder{}, fmt.Errorf("mongo: load existing order %q: %w", order.OrderID, err)
	}
	slog.InfoContext(ctx, "order already stored", "order_id", order.OrderID, "id", existing.ID)
	return existing, nil
}

func (r *Repository) GetByOrderID(ctx context.Context, orderID string) (domain.StoredOrder, error) {
	var doc orderDocument
	err := r.coll.FindOne(ctx, bson.M{"orderId": orderID}).Decode(&doc)
	if errors.Is(err, driver.ErrNoDocuments) {
		return domain.StoredOrder{}, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	if err != nil {
		return domain.StoredOrder{}, fmt.Errorf("mongo: find order %q: %w", orderID, err)
	}
	return fromDocument(doc, false), nil
}

func toDocument(id string, o domain.AssembledOrder) orderDocument {
	items := make([]itemDocument, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, itemDocument{
			ProductID:   it.ProductID,
			Name:        it.Name,
			Description: it.Description,
			Price:       it.UnitPrice.InexactFloat64(),
			Quantity:    int32(it.Quantity),
			Subtotal:    it.Subtotal.InexactFloat64(),
		})
	}
	return orderDocument{
		ID:            id,
		OrderID:       o.OrderID,
		CustomerID:    o.CustomerID,
		CustomerName:  o.CustomerName,
		CustomerEmail: o.CustomerEmail,
		Items:         items,
		TotalAmount:   o.TotalAmount.InexactFloat64(),
		Status:        string(o.Status),
		CreatedAt:     o.CreatedAt.UTC(),
		UpdatedAt:     o.UpdatedAt.UTC(),
	}
}

func fromDocument(d orderDocument, created bool) domain.StoredOrder {
	items := make([]domain.OrderLineItem, 0, len(d.Items))
	for _, it := range d.Items {
		items = append(items, domain.OrderLineItem{
			ProductID:   it.ProductID,
			Name:        it.Name,
			Description: it.Description,
			UnitPrice:   decimal.NewFromFloat(it.Price),
			Quantity:    int(it.Quantity),
			Subtotal:    decimal.NewFromFloat(it.Subtotal),
		})
	}
	return domain.StoredOrder{
		ID: d.ID,
		AssembledOrder: domain.AssembledOrder{
			OrderID:       d.OrderID,
			CustomerID:    d.CustomerID,
			CustomerName:  d.CustomerName,
			CustomerEmail: d.CustomerEmail,
			Items:         items,
			TotalAmount:   decimal.NewFromFloat(d.TotalAmount),
			Status:        domain.OrderStatus(d.Status),
			CreatedAt:     d.CreatedAt,
			UpdatedAt:     d.UpdatedAt,
		},
		Created: created,
	}
}
