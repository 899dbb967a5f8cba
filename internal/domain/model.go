package domain

import "time"

// Stage is a discrete point in an order's lifecycle. The numeric ordering is
// significant: "has the order progressed past stage S" and "is the order
// still active" are both numeric comparisons.
type Stage int

const (
	StageQueued       Stage = 1
	StageConfirmed    Stage = 2
	StageInProduction Stage = 3
	StageDelivered    Stage = 4
	StageCompleted    Stage = 5
	StageCanceled     Stage = 6
)

func (s Stage) String() string {
	switch s {
	case StageQueued:
		return "queued"
	case StageConfirmed:
		return "confirmed"
	case StageInProduction:
		return "in_production"
	case StageDelivered:
		return "delivered"
	case StageCompleted:
		return "completed"
	case StageCanceled:
		return "canceled"
	}
	return "unknown"
}

// CurrentFlow is the single source of truth for where an order is right now.
type CurrentFlow struct {
	Stage     Stage     `json:"stage"`
	EnteredAt time.Time `json:"enteredAt"`
}

// WorkflowEntry is one audit record of a stage transition. Entries are
// appended exactly once per transition and never mutated.
type WorkflowEntry struct {
	Stage                Stage `json:"stage"`
	MinutesSincePrevious int   `json:"minutesSincePrevious"`
}

type ItemAnswer struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// ItemQuestion is a configurable option on a line item ("size?", "extras?");
// each chosen answer carries its own price and quantity.
type ItemQuestion struct {
	Name    string       `json:"name"`
	Answers []ItemAnswer `json:"answers,omitempty"`
}

type OrderItem struct {
	Name      string         `json:"name"`
	Price     float64        `json:"price"`
	Quantity  int            `json:"quantity"`
	Questions []ItemQuestion `json:"questions,omitempty"`
}

type Order struct {
	ID           string          `json:"id"`
	StoreID      string          `json:"storeId"`
	PhoneNumber  string          `json:"phoneNumber"`
	CustomerName string          `json:"customerName"`
	Address      string          `json:"address"`
	PaymentID    string          `json:"paymentId"`
	Items        []OrderItem     `json:"items"`
	CurrentFlow  CurrentFlow     `json:"currentFlow"`
	Workflow     []WorkflowEntry `json:"workflow"`
	CreatedAt    time.Time       `json:"createdAt"`
}

type User struct {
	ID          string    `json:"id"`
	PhoneNumber string    `json:"phoneNumber"`
	Name        string    `json:"name"`
	Address     string    `json:"address"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ClockTime is a wall-clock point within a day.
type ClockTime struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// OpeningVariation overrides the default open/close window for one weekday.
type OpeningVariation struct {
	Day     time.Weekday `json:"day"`
	OpenAt  ClockTime    `json:"openAt"`
	CloseAt ClockTime    `json:"closeAt"`
}

// StoreHours is the weekly operating schedule plus its overrides. The
// explicit single-date overrides use "2006-01-02" calendar dates.
type StoreHours struct {
	OpenAt      ClockTime          `json:"openAt"`
	CloseAt     ClockTime          `json:"closeAt"`
	ClosingDays []time.Weekday     `json:"closingDays,omitempty"`
	Variations  []OpeningVariation `json:"openingVariations,omitempty"`
	OpenedDate  string             `json:"opened,omitempty"`
	ClosedDate  string             `json:"closed,omitempty"`
}

// Store is the per-store configuration the engine reads. RowTime is the
// stage budget: minutes an order may sit in one stage before staff are
// alerted.
type Store struct {
	ID         string     `json:"id"`
	Slug       string     `json:"slug"`
	Name       string     `json:"name"`
	StaffPhone string     `json:"staffPhone"`
	Hours      StoreHours `json:"hours"`
	RowTime    int        `json:"rowTime"`
}
