package domain

// OrderType is the execution style requested from the order layer.
type OrderType string

// Order type constants.
const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// OrderRequest is an order the engine asks the broker layer to place.
type OrderRequest struct {
	ClientOrderID string // engine-assigned, used to correlate fills
	CycleID       string
	LegIndex      int // -1 for a closing order
	Symbol        string
	Direction     Direction
	Quantity      float64
	Type          OrderType
	LimitPrice    float64 // only for limit orders
}

// ClosingOrder reports whether the request closes net exposure rather
// than adding a leg.
func (r *OrderRequest) ClosingOrder() bool {
	return r.LegIndex < 0
}

// OrderFill is the asynchronous fill confirmation from the broker layer.
type OrderFill struct {
	ClientOrderID string
	FillPrice     float64
	FillQty       float64
	FilledAtMs    int64
}

// OrderFailure is the asynchronous rejection from the broker layer.
type OrderFailure struct {
	ClientOrderID string
	Reason        string
}
