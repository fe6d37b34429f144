package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FulfillmentRequest is the payload of a work queue message. It only names
// the order: the worker always re-reads the current document.
type FulfillmentRequest struct {
	OrderID string `json:"orderId"`
}

func (r FulfillmentRequest) Encode() ([]byte, error) {
	if strings.TrimSpace(r.OrderID) == "" {
		return nil, fmt.Errorf("%w: empty orderId", ErrMalformedRequest)
	}
	return json.Marshal(r)
}

// DecodeFulfillmentRequest parses a message body. Any failure wraps
// ErrMalformedRequest.
func DecodeFulfillmentRequest(body []byte) (FulfillmentRequest, error) {
	var r FulfillmentRequest
	if err := json.Unmarshal(body, &r); err != nil {
		return FulfillmentRequest{}, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	if strings.TrimSpace(r.OrderID) == "" {
		return FulfillmentRequest{}, fmt.Errorf("%w: empty orderId", ErrMalformedRequest)
	}
	return r, nil
}
