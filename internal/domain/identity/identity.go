package identity

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrUnauthenticated = errors.New("identity: caller is not authenticated")
	ErrForbidden       = errors.New("identity: authorization denied")
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Capability is something a caller may be allowed to do.
type Capability string

const (
	CapPlaceOrder    Capability = "order:place"
	CapReadOwnOrders Capability = "order:read_own"
	CapReadAllOrders Capability = "order:read_all"
	CapUpdateStatus  Capability = "order:update_status"
	CapManageOwnCart Capability = "cart:manage_own"
)

var grants = map[Role][]Capability{
	RoleCustomer: {CapPlaceOrder, CapReadOwnOrders, CapManageOwnCart},
	RoleAdmin:    {CapPlaceOrder, CapReadOwnOrders, CapManageOwnCart, CapReadAllOrders, CapUpdateStatus},
}

// ParseRole maps a role string to a Role; anything unrecognised is a customer.
func ParseRole(s string) Role {
	if Role(strings.ToLower(strings.TrimSpace(s))) == RoleAdmin {
		return RoleAdmin
	}
	return RoleCustomer
}

// Caller is the authenticated principal of a request.
type Caller struct {
	UserID string
	Role   Role
}

func (c Caller) Can(capability Capability) bool {
	for _, granted := range grants[c.Role] {
		if granted == capability {
			return true
		}
	}
	return false
}

type callerKey struct{}

// WithCaller stores the caller on the context.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// FromContext returns the caller stored on ctx, if any.
func FromContext(ctx context.Context) (Caller, bool) {
	if ctx == nil {
		return Caller{}, false
	}
	c, ok := ctx.Value(callerKey{}).(Caller)
	if !ok || c.UserID == "" {
		return Caller{}, false
	}
	return c, true
}

// Require returns the caller when it holds capability.
func Require(ctx context.Context, capability Capability) (Caller, error) {
	c, ok := FromContext(ctx)
	if !ok {
		return Caller{}, ErrUnauthenticated
	}
	if !c.Can(capability) {
		return c, ErrForbidden
	}
	return c, nil
}
