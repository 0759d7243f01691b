package order

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound               = errors.New("order: not found")
	ErrConflict               = errors.New("order: conflict")
	ErrEmptyCart              = errors.New("order: cart is empty")
	ErrMissingShippingAddress = errors.New("order: shipping address is required")
	ErrMissingOwner           = errors.New("order: owner id is required")
	ErrInvalidLine            = errors.New("order: invalid line item")
	ErrInvalidStatus          = errors.New("order: invalid status")
	ErrInvalidTransition      = errors.New("order: invalid status transition")
	ErrTotalMismatch          = errors.New("order: total does not match line items")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every recognised status in lifecycle order.
var Statuses = []Status{StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled}

// ParseStatus accepts a status name case-insensitively.
func ParseStatus(s string) (Status, error) {
	candidate := Status(strings.ToLower(strings.TrimSpace(s)))
	if !candidate.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return candidate, nil
}

func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// LineItem is the sale-time copy of a product inside an order.
// It is never updated after the order is created.
type LineItem struct {
	ProductID string
	Name      string
	Price     int64
	Quantity  int
	Image     string
}

func (l LineItem) Subtotal() int64 { return l.Price * int64(l.Quantity) }

func (l LineItem) validate() error {
	switch {
	case strings.TrimSpace(l.ProductID) == "":
		return fmt.Errorf("%w: product id is required", ErrInvalidLine)
	case l.Quantity < 1:
		return fmt.Errorf("%w: quantity must be at least 1 for product %s", ErrInvalidLine, l.ProductID)
	case l.Price < 0:
		return fmt.Errorf("%w: price must be zero or greater for product %s", ErrInvalidLine, l.ProductID)
	}
	return nil
}

type Order struct {
	ID              string
	OwnerID         string
	OrderedOn       time.Time
	Items           []LineItem
	TotalAmount     int64
	PaymentMethod   string
	ShippingAddress string
	Status          Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// New builds a pending order from already reserved line snapshots and fixes its total.
func New(id, ownerID string, items []LineItem, paymentMethod, shippingAddress string) (*Order, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrMissingOwner
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	if strings.TrimSpace(shippingAddress) == "" {
		return nil, ErrMissingShippingAddress
	}
	for _, l := range items {
		if err := l.validate(); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	o := &Order{
		ID:              id,
		OwnerID:         ownerID,
		OrderedOn:       now,
		Items:           append([]LineItem(nil), items...),
		PaymentMethod:   strings.TrimSpace(paymentMethod),
		ShippingAddress: strings.TrimSpace(shippingAddress),
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	o.TotalAmount = SumItems(o.Items)
	return o, nil
}

// SumItems returns the sum of price × quantity over items.
func SumItems(items []LineItem) int64 {
	var total int64
	for _, l := range items {
		total += l.Subtotal()
	}
	return total
}

// Verify recomputes the total from the line snapshots.
func (o *Order) Verify() error {
	if len(o.Items) == 0 {
		return ErrEmptyCart
	}
	if got := SumItems(o.Items); got != o.TotalAmount {
		return fmt.Errorf("%w: stored %d, recomputed %d", ErrTotalMismatch, o.TotalAmount, got)
	}
	return nil
}

// Plan works out what moving to target would do without touching the order.
func (o *Order) Plan(target Status) (Transition, error) {
	if !target.Valid() {
		return Transition{}, fmt.Errorf("%w: %q", ErrInvalidStatus, target)
	}
	return stateOf(o.Status).On(target)
}

// Apply records a planned transition on the order.
func (o *Order) Apply(t Transition, at time.Time) {
	if !t.Changed {
		return
	}
	o.Status = t.To
	o.UpdatedAt = at
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Items = append([]LineItem(nil), o.Items...)
	return &clone
}
