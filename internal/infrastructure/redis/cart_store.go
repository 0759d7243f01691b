package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-store/internal/domain/cart"
	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "cart:"
	maxAddAttempts   = 5
)

var errCartContended = errors.New("redis: cart update contended")

type cartLineDoc struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type cartDoc struct {
	Lines     []cartLineDoc `json:"lines"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// CartStore keeps one JSON document per owner under "cart:<owner>".
type CartStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewCartStore builds a store. A zero ttl keeps carts until cleared.
func NewCartStore(client *redis.Client, ttl time.Duration) *CartStore {
	return &CartStore{client: client, prefix: defaultKeyPrefix, ttl: ttl}
}

func (s *CartStore) key(ownerID string) string { return s.prefix + ownerID }

func (s *CartStore) Read(ctx context.Context, ownerID string) (*cart.Cart, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, cart.ErrMissingOwner
	}
	raw, err := s.client.Get(ctx, s.key(ownerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return cart.Empty(ownerID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: read cart %s: %w", ownerID, err)
	}
	return decodeCart(ownerID, raw)
}

// Add merges line into the owner's cart inside an optimistic WATCH transaction.
func (s *CartStore) Add(ctx context.Context, ownerID string, line cart.Line) (*cart.Cart, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, cart.ErrMissingOwner
	}
	if err := line.Validate(); err != nil {
		return nil, err
	}
	key := s.key(ownerID)

	var updated *cart.Cart
	txf := func(tx *redis.Tx) error {
		current := cart.Empty(ownerID)
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if current, err = decodeCart(ownerID, raw); err != nil {
				return err
			}
		}
		if err := current.Add(line); err != nil {
			return err
		}
		body, err := encodeCart(current)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, body, s.ttl)
			return nil
		})
		if err == nil {
			updated = current
		}
		return err
	}

	for attempt := 0; attempt < maxAddAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, cart.ErrInvalidQuantity) || errors.Is(err, cart.ErrMissingProduct) {
			return nil, err
		}
		return nil, fmt.Errorf("redis: add to cart %s: %w", ownerID, err)
	}
	return nil, fmt.Errorf("redis: add to cart %s: %w", ownerID, errCartContended)
}

func (s *CartStore) Clear(ctx context.Context, ownerID string) error {
	if err := s.client.Del(ctx, s.key(ownerID)).Err(); err != nil {
		return fmt.Errorf("redis: clear cart %s: %w", ownerID, err)
	}
	return nil
}

func encodeCart(c *cart.Cart) ([]byte, error) {
	doc := cartDoc{Lines: make([]cartLineDoc, 0, len(c.Lines)), UpdatedAt: c.UpdatedAt}
	for _, l := range c.Lines {
		doc.Lines = append(doc.Lines, cartLineDoc{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return json.Marshal(doc)
}

func decodeCart(ownerID string, raw []byte) (*cart.Cart, error) {
	var doc cartDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("redis: decode cart %s: %w", ownerID, err)
	}
	c := &cart.Cart{OwnerID: ownerID, Lines: make([]cart.Line, 0, len(doc.Lines)), UpdatedAt: doc.UpdatedAt}
	for _, l := range doc.Lines {
		c.Lines = append(c.Lines, cart.Line{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return c, nil
}
