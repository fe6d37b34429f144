package httpx

import "github.com/jcmexdev/order-pipeline/internal/domain"

type CreateOrderRequest struct {
	CustomerID      string               `json:"customerId"`
	CustomerEmail   string               `json:"customerEmail"`
	Items           []CreateOrderItemDTO `json:"items"`
	ShippingAddress *AddressDTO          `json:"shippingAddress"`
}

// CreateOrderItemDTO keeps quantity and price as pointers so an absent value
// can be told apart from zero.
type CreateOrderItemDTO struct {
	ProductID string   `json:"productId"`
	Name      string   `json:"name"`
	Quantity  *int     `json:"quantity"`
	Price     *float64 `json:"price"`
}

type AddressDTO struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

type CreateOrderResponse struct {
	OrderID string        `json:"orderId"`
	Status  domain.Status `json:"status"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// toDraft performs the presence checks that need the raw request. Everything
// else is left to domain validation.
func (r CreateOrderRequest) toDraft() (domain.Draft, error) {
	if r.CustomerID == "" || r.CustomerEmail == "" || len(r.Items) == 0 || r.ShippingAddress == nil {
		return domain.Draft{}, domain.NewValidationError("order", domain.MissingFieldsMessage)
	}

	items := make([]domain.Item, 0, len(r.Items))
	for _, it := range r.Items {
		if it.Quantity == nil || it.Price == nil {
			return domain.Draft{}, domain.NewValidationError("items", domain.ItemPricingMessage)
		}
		items = append(items, domain.Item{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  *it.Quantity,
			Price:     *it.Price,
		})
	}

	addr := r.ShippingAddress
	return domain.Draft{
		CustomerID:    r.CustomerID,
		CustomerEmail: r.CustomerEmail,
		Items:         items,
		ShippingAddress: domain.Address{
			Street:  addr.Street,
			City:    addr.City,
			State:   addr.State,
			ZipCode: addr.ZipCode,
			Country: addr.Country,
		},
	}, nil
}
