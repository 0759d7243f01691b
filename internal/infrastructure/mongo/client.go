package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	productsCollection  = "products"
	ordersCollection    = "orders"
	customersCollection = "customers"

	connectTimeout = 10 * time.Second
)

// Client owns the connection and hands out the collection-backed stores.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials uri, pings the primary and ensures the indexes the stores rely on.
func Connect(ctx context.Context, uri, database string) (*Client, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}

	c := &Client{client: client, db: client.Database(database)}
	if err := c.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, err
	}
	return c, nil
}

func (c *Client) ensureIndexes(ctx context.Context) error {
	_, err := c.db.Collection(ordersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("mongo: create order indexes: %w", err)
	}
	return nil
}

func (c *Client) Products() *ProductStore {
	return &ProductStore{coll: c.db.Collection(productsCollection)}
}

func (c *Client) Orders() *OrderRepository {
	return &OrderRepository{coll: c.db.Collection(ordersCollection)}
}

func (c *Client) Customers() *CustomerDirectory {
	return &CustomerDirectory{coll: c.db.Collection(customersCollection)}
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}
