package domain

type CreateOrderItem struct {
	Name      string         `json:"name"`
	Price     float64        `json:"price"`
	Quantity  int            `json:"quantity"`
	Questions []ItemQuestion `json:"questions,omitempty"`
}

type CreateOrderRequest struct {
	StoreID      string            `json:"store_id"`
	PhoneNumber  string            `json:"phone_number"`
	CustomerName string            `json:"customer_name"`
	Address      string            `json:"address"`
	PaymentID    string            `json:"payment_id"`
	Items        []CreateOrderItem `json:"items"`
}

type CreateOrderResponse struct {
	OrderID     string  `json:"order_id"`
	Stage       string  `json:"stage"`
	TotalAmount float64 `json:"total_amount"`
}

// ConvertItems maps the request line items into the persisted order shape.
func ConvertItems(in []CreateOrderItem) []OrderItem {
	out := make([]OrderItem, 0, len(in))
	for _, it := range in {
		out = append(out, OrderItem{
			Name:      it.Name,
			Price:     it.Price,
			Quantity:  it.Quantity,
			Questions: it.Questions,
		})
	}
	return out
}

// Total sums line items and their chosen option answers.
func Total(items []OrderItem) float64 {
	total := 0.0
	for _, it := range items {
		total += it.Price * float64(it.Quantity)
		for _, q := range it.Questions {
			for _, a := range q.Answers {
				total += a.Price * float64(a.Quantity)
			}
		}
	}
	return total
}
