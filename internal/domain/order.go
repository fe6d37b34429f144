package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// MissingFieldsMessage is reported when a draft lacks one of the top level
// fields (customer, contact, items or shipping address).
const MissingFieldsMessage = "Missing required fields"

// ItemPricingMessage is reported when a line item has no price or quantity.
const ItemPricingMessage = "Item price or quantity missing"

// Order is the unit of work moving through the pipeline. It is stored as a
// single document; the JSON form is also what GET /orders/{id} returns.
type Order struct {
	ID              string        `json:"id"`
	CustomerID      string        `json:"customerId"`
	CustomerEmail   string        `json:"customerEmail"`
	Items           []Item        `json:"items"`
	TotalAmount     float64       `json:"totalAmount"`
	ShippingAddress Address       `json:"shippingAddress"`
	Status          Status        `json:"status"`
	PaymentStatus   PaymentStatus `json:"paymentStatus"`

	// TrackingNumber is set only once the order has shipped.
	TrackingNumber *string `json:"trackingNumber"`

	ProcessedAt *time.Time `json:"processedAt"`
	ShippedAt   *time.Time `json:"shippedAt"`
	DeliveredAt *time.Time `json:"deliveredAt"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Item struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// Subtotal is quantity times unit price.
func (i Item) Subtotal() float64 {
	return float64(i.Quantity) * i.Price
}

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

func (a Address) isZero() bool {
	return a == Address{}
}

// Draft is the input accepted by the creation service. TotalAmount is
// optional: when nil it is derived from the items.
type Draft struct {
	CustomerID      string
	CustomerEmail   string
	Items           []Item
	ShippingAddress Address
	TotalAmount     *float64
}

// Total returns the sum of quantity × price over the draft's items.
func (d Draft) Total() float64 {
	var total float64
	for _, it := range d.Items {
		total += it.Subtotal()
	}
	return total
}

// Validate checks every field of the draft and returns all problems joined
// together. Each joined error is a *ValidationError.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.CustomerID) == "" ||
		strings.TrimSpace(d.CustomerEmail) == "" ||
		len(d.Items) == 0 ||
		d.ShippingAddress.isZero() {
		return NewValidationError("order", MissingFieldsMessage)
	}

	var errs []error
	for i, it := range d.Items {
		field := fmt.Sprintf("items[%d]", i)
		if strings.TrimSpace(it.ProductID) == "" {
			errs = append(errs, NewValidationError(field+".productId", "Item productId is required"))
		}
		if strings.TrimSpace(it.Name) == "" {
			errs = append(errs, NewValidationError(field+".name", "Item name is required"))
		}
		if it.Quantity < 1 {
			errs = append(errs, NewValidationError(field+".quantity", "Item quantity must be at least 1"))
		}
		if it.Price < 0 {
			errs = append(errs, NewValidationError(field+".price", "Item price must not be negative"))
		}
		if !finite(it.Price) || !finite(it.Subtotal()) {
			errs = append(errs, NewValidationError(field+".price", "Item subtotal is not a valid amount"))
		}
	}

	addr := d.ShippingAddress
	for _, f := range []struct{ name, value string }{
		{"street", addr.Street},
		{"city", addr.City},
		{"state", addr.State},
		{"zipCode", addr.ZipCode},
		{"country", addr.Country},
	} {
		if strings.TrimSpace(f.value) == "" {
			errs = append(errs, NewValidationError("shippingAddress."+f.name, "Shipping address "+f.name+" is required"))
		}
	}

	switch {
	case d.TotalAmount != nil && !finite(*d.TotalAmount):
		errs = append(errs, NewValidationError("totalAmount", "Total amount is not a valid amount"))
	case d.TotalAmount != nil && *d.TotalAmount < 0:
		errs = append(errs, NewValidationError("totalAmount", "Total amount must not be negative"))
	case d.TotalAmount == nil && !finite(d.Total()):
		errs = append(errs, NewValidationError("totalAmount", "Total amount is not a valid amount"))
	}

	return errors.Join(errs...)
}

func finite(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}

// NewOrder validates the draft and builds an order in CREATED/PENDING. The
// total is derived from the items unless the draft carries one; it is never
// recomputed afterwards.
func NewOrder(id string, d Draft, now time.Time) (*Order, error) {
	if strings.TrimSpace(id) == "" {
		return nil, NewValidationError("id", "order id is required")
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}

	total := d.Total()
	if d.TotalAmount != nil {
		total = *d.TotalAmount
	}

	items := make([]Item, len(d.Items))
	copy(items, d.Items)

	now = now.UTC()
	return &Order{
		ID:              id,
		CustomerID:      d.CustomerID,
		CustomerEmail:   d.CustomerEmail,
		Items:           items,
		TotalAmount:     total,
		ShippingAddress: d.ShippingAddress,
		Status:          StatusCreated,
		PaymentStatus:   PaymentPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// StartProcessing moves a CREATED order to PROCESSING and stamps processedAt.
func (o *Order) StartProcessing(now time.Time) error {
	if o.Status != StatusCreated {
		return transitionError(o.Status, StatusProcessing)
	}
	now = now.UTC()
	o.Status = StatusProcessing
	o.ProcessedAt = &now
	o.UpdatedAt = now
	return nil
}

// Complete applies a fulfillment outcome to a PROCESSING order. A shipped
// order is paid and gets a tracking number; a cancelled one has its payment
// marked failed and no tracking number.
func (o *Order) Complete(outcome Outcome, now time.Time) error {
	if !outcome.Valid() {
		return fmt.Errorf("%w: unknown outcome %q", ErrInvalidTransition, outcome)
	}
	if o.Status != StatusProcessing {
		return transitionError(o.Status, outcome.status())
	}

	o.Status = outcome.status()
	o.PaymentStatus = outcome.payment()
	o.TrackingNumber = nil
	if outcome == OutcomeShipped {
		tn := TrackingNumberFor(o.ID)
		o.TrackingNumber = &tn
	}
	o.UpdatedAt = now.UTC()
	return nil
}

// Clone returns a deep copy so stores and caches never share mutable state
// with callers.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = append([]Item(nil), o.Items...)
	c.TrackingNumber = clonePtr(o.TrackingNumber)
	c.ProcessedAt = clonePtr(o.ProcessedAt)
	c.ShippedAt = clonePtr(o.ShippedAt)
	c.DeliveredAt = clonePtr(o.DeliveredAt)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// TrackingNumberFor returns the tracking number issued to a shipped order.
func TrackingNumberFor(orderID string) string {
	return "TRK" + orderID
}
