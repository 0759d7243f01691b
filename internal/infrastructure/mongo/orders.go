package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/Zhima-Mochi/minishop-store/internal/domain/order"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type lineItemDoc struct {
	ProductID string `bson:"product_id"`
	Name      string `bson:"name"`
	Price     int64  `bson:"price"`
	Quantity  int    `bson:"quantity"`
	Image     string `bson:"image,omitempty"`
}

type orderDoc struct {
	ID              string        `bson:"_id"`
	OwnerID         string        `bson:"owner_id"`
	OrderedOn       time.Time     `bson:"ordered_on"`
	Items           []lineItemDoc `bson:"items"`
	TotalAmount     int64         `bson:"total_amount"`
	PaymentMethod   string        `bson:"payment_method"`
	ShippingAddress string        `bson:"shipping_address"`
	Status          string        `bson:"status"`
	CreatedAt       time.Time     `bson:"created_at"`
	UpdatedAt       time.Time     `bson:"updated_at"`
}

func toOrderDoc(o *domain.Order) orderDoc {
	items := make([]lineItemDoc, 0, len(o.Items))
	for _, l := range o.Items {
		items = append(items, lineItemDoc{
			ProductID: l.ProductID,
			Name:      l.Name,
			Price:     l.Price,
			Quantity:  l.Quantity,
			Image:     l.Image,
		})
	}
	return orderDoc{
		ID:              o.ID,
		OwnerID:         o.OwnerID,
		OrderedOn:       o.OrderedOn,
		Items:           items,
		TotalAmount:     o.TotalAmount,
		PaymentMethod:   o.PaymentMethod,
		ShippingAddress: o.ShippingAddress,
		Status:          string(o.Status),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func (d orderDoc) toDomain() *domain.Order {
	items := make([]domain.LineItem, 0, len(d.Items))
	for _, l := range d.Items {
		items = append(items, domain.LineItem{
			ProductID: l.ProductID,
			Name:      l.Name,
			Price:     l.Price,
			Quantity:  l.Quantity,
			Image:     l.Image,
		})
	}
	return &domain.Order{
		ID:              d.ID,
		OwnerID:         d.OwnerID,
		OrderedOn:       d.OrderedOn,
		Items:           items,
		TotalAmount:     d.TotalAmount,
		PaymentMethod:   d.PaymentMethod,
		ShippingAddress: d.ShippingAddress,
		Status:          domain.Status(d.Status),
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

type OrderRepository struct {
	coll *mongo.Collection
}

func (r *OrderRepository) Insert(ctx context.Context, o *domain.Order) error {
	if o == nil || o.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}
	_, err := r.coll.InsertOne(ctx, toOrderDoc(o))
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("mongo: insert order %s: %w", o.ID, err)
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	var doc orderDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo: get order %s: %w", id, err)
	}
	return doc.toDomain(), nil
}

func (r *OrderRepository) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Order, error) {
	query := bson.M{}
	if filter.OwnerID != "" {
		query["owner_id"] = filter.OwnerID
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cur, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: list orders: %w", err)
	}
	var docs []orderDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decode orders: %w", err)
	}

	out := make([]*domain.Order, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to domain.Status, at time.Time) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "status": string(from)},
		bson.M{"$set": bson.M{"status": string(to), "updated_at": at}},
	)
	if err != nil {
		return fmt.Errorf("mongo: update order status %s: %w", id, err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("mongo: update order status %s: %w", id, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}
