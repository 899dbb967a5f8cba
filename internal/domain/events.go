package domain

import "time"

// Notification channels. WhatsApp messages go to the customer, push
// messages go to store staff.
const (
	ChannelWhatsApp = "whatsapp"
	ChannelPush     = "push"
)

// Notification is the wire message published for the delivery subscriber.
type Notification struct {
	Channel   string    `json:"channel"`
	Target    string    `json:"target"`
	Title     string    `json:"title,omitempty"`
	Body      string    `json:"body"`
	OrderID   string    `json:"order_id,omitempty"`
	StoreID   string    `json:"store_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
