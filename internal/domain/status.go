package domain

// Status is the fulfillment lifecycle state of an order.
//
//	CREATED ──> PROCESSING ──┬──> SHIPPED ──> DELIVERED
//	                         └──> CANCELLED
//
// PROCESSING only exists in memory while the worker handles a message; the
// stored document goes from CREATED straight to its final status.
type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }

// PaymentStatus is simulated locally; there is no payment gateway behind it.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// Outcome is the result of a fulfillment decision.
type Outcome string

const (
	OutcomeShipped   Outcome = "SHIPPED"
	OutcomeCancelled Outcome = "CANCELLED"
)

func (o Outcome) Valid() bool {
	return o == OutcomeShipped || o == OutcomeCancelled
}

// status maps the outcome to the final order status.
func (o Outcome) status() Status {
	if o == OutcomeShipped {
		return StatusShipped
	}
	return StatusCancelled
}

// payment derives the payment status: PAID iff the order shipped.
func (o Outcome) payment() PaymentStatus {
	if o == OutcomeShipped {
		return PaymentPaid
	}
	return PaymentFailed
}
