package order

import (
	"context"

	domain "github.com/Zhima-Mochi/minishop-store/internal/domain/order"
)

// Service groups the order use cases behind one value for the transport layer.
type Service struct {
	place   *PlaceOrderUseCase
	status  *UpdateStatusUseCase
	listOwn *ListOrdersUseCase
	listAll *ListAllOrdersUseCase
	get     *GetOrderUseCase
}

func NewService(deps Dependencies) *Service {
	return &Service{
		place:   NewPlaceOrderUseCase(deps),
		status:  NewUpdateStatusUseCase(deps),
		listOwn: NewListOrdersUseCase(deps),
		listAll: NewListAllOrdersUseCase(deps),
		get:     NewGetOrderUseCase(deps),
	}
}

func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*domain.Order, error) {
	return s.place.Execute(ctx, in)
}

func (s *Service) UpdateStatus(ctx context.Context, in UpdateStatusInput) (*domain.Order, error) {
	return s.status.Execute(ctx, in)
}

func (s *Service) ListOrders(ctx context.Context, in ListOrdersInput) ([]*domain.Order, error) {
	return s.listOwn.Execute(ctx, in)
}

func (s *Service) ListAllOrders(ctx context.Context, in ListAllOrdersInput) ([]OwnedOrder, error) {
	return s.listAll.Execute(ctx, in)
}

func (s *Service) GetOrder(ctx context.Context, in GetOrderInput) (*domain.Order, error) {
	return s.get.Execute(ctx, in)
}
