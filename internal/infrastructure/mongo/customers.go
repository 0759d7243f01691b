package mongostore

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/minishop-store/internal/domain/customer"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type customerDoc struct {
	ID      string `bson:"_id"`
	Name    string `bson:"name"`
	Email   string `bson:"email"`
	Address string `bson:"address,omitempty"`
}

type CustomerDirectory struct {
	coll *mongo.Collection
}

func (d *CustomerDirectory) FindCustomer(ctx context.Context, id string) (*customer.Customer, error) {
	var doc customerDoc
	err := d.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, customer.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo: find customer %s: %w", id, err)
	}
	return &customer.Customer{ID: doc.ID, Name: doc.Name, Email: doc.Email, Address: doc.Address}, nil
}

func (d *CustomerDirectory) SaveCustomer(ctx context.Context, c *customer.Customer) error {
	if c == nil || c.ID == "" {
		return customer.ErrMissingID
	}
	doc := customerDoc{ID: c.ID, Name: c.Name, Email: c.Email, Address: c.Address}
	if _, err := d.coll.ReplaceOne(ctx, bson.M{"_id": c.ID}, doc, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("mongo: save customer %s: %w", c.ID, err)
	}
	return nil
}
