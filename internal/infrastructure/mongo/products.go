package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-store/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-store/internal/domain/inventory"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type productDoc struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	Price     int64     `bson:"price"`
	Stock     int       `bson:"stock"`
	Image     string    `bson:"image,omitempty"`
	Category  string    `bson:"category,omitempty"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func toProductDoc(p *catalog.Product) productDoc {
	return productDoc{
		ID:        p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Stock:     p.Stock,
		Image:     p.Image,
		Category:  p.Category,
		UpdatedAt: p.UpdatedAt,
	}
}

func (d productDoc) toDomain() *catalog.Product {
	return &catalog.Product{
		ID:        d.ID,
		Name:      d.Name,
		Price:     d.Price,
		Stock:     d.Stock,
		Image:     d.Image,
		Category:  d.Category,
		UpdatedAt: d.UpdatedAt,
	}
}

// ProductStore is the products collection. It is also the stock ledger:
// reservations are single conditional updates, never read-then-write.
type ProductStore struct {
	coll *mongo.Collection
}

func (s *ProductStore) FindProduct(ctx context.Context, id string) (*catalog.Product, error) {
	var doc productDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo: find product %s: %w", id, err)
	}
	return doc.toDomain(), nil
}

func (s *ProductStore) SaveProduct(ctx context.Context, p *catalog.Product) error {
	if p == nil {
		return catalog.ErrMissingID
	}
	if err := p.Validate(); err != nil {
		return err
	}
	doc := toProductDoc(p)
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now().UTC()
	}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo: save product %s: %w", p.ID, err)
	}
	return nil
}

func (s *ProductStore) Reserve(ctx context.Context, productID string, quantity int) error {
	if err := inventory.ValidateQuantity(quantity); err != nil {
		return err
	}

	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": productID, "stock": bson.M{"$gte": quantity}},
		bson.M{
			"$inc": bson.M{"stock": -quantity},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return fmt.Errorf("mongo: reserve %s: %w", productID, err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	// Nothing matched: either the product is gone or its stock is short.
	var doc productDoc
	err = s.coll.FindOne(ctx, bson.M{"_id": productID}, options.FindOne().SetProjection(bson.M{"stock": 1})).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &inventory.NotFoundError{ProductID: productID}
	}
	if err != nil {
		return fmt.Errorf("mongo: reserve %s: read stock: %w", productID, err)
	}
	return &inventory.InsufficientStockError{ProductID: productID, Available: doc.Stock, Requested: quantity}
}

func (s *ProductStore) Restock(ctx context.Context, productID string, quantity int) error {
	if err := inventory.ValidateQuantity(quantity); err != nil {
		return err
	}

	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": productID},
		bson.M{
			"$inc": bson.M{"stock": quantity},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return fmt.Errorf("mongo: restock %s: %w", productID, err)
	}
	if res.MatchedCount == 0 {
		return &inventory.NotFoundError{ProductID: productID}
	}
	return nil
}
