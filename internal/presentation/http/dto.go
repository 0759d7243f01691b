package httppresentation

import (
	"time"

	"github.com/Zhima-Mochi/minishop-store/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-store/internal/domain/catalog"
	domainOrder "github.com/Zhima-Mochi/minishop-store/internal/domain/order"
)

type lineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type placeOrderRequest struct {
	PaymentMethod   string `json:"payment_method"`
	ShippingAddress string `json:"shipping_address"`
	// Items replaces the stored cart when present.
	Items []lineRequest `json:"items"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type productResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Stock    int    `json:"stock"`
	Image    string `json:"image,omitempty"`
	Category string `json:"category,omitempty"`
}

func toProductResponse(p *catalog.Product) productResponse {
	return productResponse{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price,
		Stock:    p.Stock,
		Image:    p.Image,
		Category: p.Category,
	}
}

type cartResponse struct {
	OwnerID string        `json:"owner_id"`
	Lines   []lineRequest `json:"lines"`
}

func toCartResponse(c *cart.Cart) cartResponse {
	out := cartResponse{OwnerID: c.OwnerID, Lines: make([]lineRequest, 0, len(c.Lines))}
	for _, l := range c.Lines {
		out.Lines = append(out.Lines, lineRequest{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return out
}

type lineItemResponse struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	Image     string `json:"image,omitempty"`
	Subtotal  int64  `json:"subtotal"`
}

type orderResponse struct {
	ID              string             `json:"id"`
	OwnerID         string             `json:"owner_id"`
	OrderedOn       time.Time          `json:"ordered_on"`
	Items           []lineItemResponse `json:"items"`
	TotalAmount     int64              `json:"total_amount"`
	PaymentMethod   string             `json:"payment_method"`
	ShippingAddress string             `json:"shipping_address"`
	Status          domainOrder.Status `json:"status"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

type adminOrderResponse struct {
	orderResponse
	OwnerName  string `json:"owner_name"`
	OwnerEmail string `json:"owner_email"`
}

func toOrderResponse(o *domainOrder.Order) orderResponse {
	items := make([]lineItemResponse, 0, len(o.Items))
	for _, l := range o.Items {
		items = append(items, lineItemResponse{
			ProductID: l.ProductID,
			Name:      l.Name,
			Price:     l.Price,
			Quantity:  l.Quantity,
			Image:     l.Image,
			Subtotal:  l.Subtotal(),
		})
	}
	return orderResponse{
		ID:              o.ID,
		OwnerID:         o.OwnerID,
		OrderedOn:       o.OrderedOn,
		Items:           items,
		TotalAmount:     o.TotalAmount,
		PaymentMethod:   o.PaymentMethod,
		ShippingAddress: o.ShippingAddress,
		Status:          o.Status,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}
