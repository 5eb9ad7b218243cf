// Package mongo reads the customers and products collections.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	driver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jcmexdev/order-worker/internal/catalog-service/app"
	"github.com/jcmexdev/order-worker/internal/domain"
)

type customerDocument struct {
	CustomerID string    `bson:"customerId"`
	Name       string    `bson:"name"`
	Email      string    `bson:"email"`
	Phone      string    `bson:"phone"`
	Active     bool      `bson:"active"`
	CreatedAt  time.Time `bson:"createdAt"`
	UpdatedAt  time.Time `bson:"updatedAt"`
}

// productDocument keeps price raw: seeded data stores doubles, while
// Decimal128 is accepted too.
type productDocument struct {
	ProductID   string        `bson:"productId"`
	Name        string        `bson:"name"`
	Description string        `bson:"description"`
	Category    string        `bson:"category"`
	Price       bson.RawValue `bson:"price"`
	Stock       int           `bson:"stock"`
	Active      bool          `bson:"active"`
	CreatedAt   time.Time     `bson:"createdAt"`
	UpdatedAt   time.Time     `bson:"updatedAt"`
}

type Repository struct {
	customers *driver.Collection
	products  *driver.Collection
}

// New returns a repository over db and makes sure the id indexes exist.
func New(ctx context.Context, db *driver.Database) (*Repository, error) {
	r := &Repository{
		customers: db.Collection("customers"),
		products:  db.Collection("products"),
	}

	indexes := []struct {
		coll *driver.Collection
		key  string
		name string
	}{
		{r.customers, "customerId", "idx_customers_customerId_unique"},
		{r.products, "productId", "idx_products_productId_unique"},
	}
	for _, idx := range indexes {
		_, err := idx.coll.Indexes().CreateOne(ctx, driver.IndexModel{
			Keys:    bson.D{{Key: idx.key, Value: 1}},
			Options: options.Index().SetName(idx.name).SetUnique(true),
		})
		if err != nil {
			return nil, fmt.Errorf("mongo: create index %s: %w", idx.name, err)
		}
	}
	return r, nil
}

func (r *Repository) GetCustomer(ctx context.Context, customerID string) (domain.Customer, error) {
	var doc customerDocument
	if err := findOne(ctx, r.customers, "customerId", customerID, &doc); err != nil {
		return domain.Customer{}, err
	}
	return domain.Customer{
		CustomerID: doc.CustomerID,
		Name:       doc.Name,
		Email:      doc.Email,
		Phone:      doc.Phone,
		Active:     doc.Active,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}, nil
}

func (r *Repository) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	var doc productDocument
	if err := findOne(ctx, r.products, "productId", productID, &doc); err != nil {
		return domain.Product{}, err
	}
	return toProduct(doc)
}

func findOne(ctx context.Context, coll *driver.Collection, field, id string, out any) error {
	err := coll.FindOne(ctx, bson.M{field: id}).Decode(out)
	if errors.Is(err, driver.ErrNoDocuments) {
		return fmt.Errorf("%w: %s %s", app.ErrNotFound, field, id)
	}
	if err != nil {
		return fmt.Errorf("mongo: find %s %s: %w", field, id, err)
	}
	return nil
}

func toProduct(doc productDocument) (domain.Product, error) {
	price, err := decodePrice(doc.Price)
	if err != nil {
		return domain.Product{}, fmt.Errorf("mongo: product %s: %w", doc.ProductID, err)
	}
	return domain.Product{
		ProductID:   doc.ProductID,
		Name:        doc.Name,
		Description: doc.Description,
		Category:    doc.Category,
		Price:       price,
		Stock:       doc.Stock,
		Active:      doc.Active,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}, nil
}

func decodePrice(v bson.RawValue) (decimal.Decimal, error) {
	switch v.Type {
	case bson.TypeDouble:
		return decimal.NewFromFloat(v.Double()), nil
	case bson.TypeDecimal128:
		return decimal.NewFromString(v.Decimal128().String())
	case bson.TypeInt32:
		return decimal.NewFromInt32(v.Int32()), nil
	case bson.TypeInt64:
		return decimal.NewFromInt(v.Int64()), nil
	default:
		return decimal.Decimal{}, fmt.Errorf("unsupported price type %s", v.Type)
	}
}
