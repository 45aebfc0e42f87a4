package orders

import "time"

// CreateOrderRequest creates a new inquiry in PLANNING.
type CreateOrderRequest struct {
	EventName  string    `json:"event_name" validate:"required,max=255"`
	CustomerID int64     `json:"customer_id" validate:"required,gt=0"`
	EventID    int64     `json:"event_id" validate:"required,gt=0"`
	Discount   float64   `json:"discount" validate:"gte=0,lte=100"`
	StartDate  time.Time `json:"start_date" validate:"required"`
	EndDate    time.Time `json:"end_date" validate:"required,gtefield=StartDate"`
}

// ScheduleInput is one schedule line of an edit set. ID zero means a
// new line; non-zero updates the existing line in place.
type ScheduleInput struct {
	ID       int64     `json:"id" validate:"gte=0"`
	Title    string    `json:"title" validate:"required,max=255"`
	Location string    `json:"location" validate:"max=255"`
	StartsAt time.Time `json:"starts_at" validate:"required"`
	EndsAt   time.Time `json:"ends_at" validate:"required,gtefield=StartsAt"`
}

// UpdateSchedulesRequest replaces the full schedule set of an order.
// Lines absent from the set are deleted.
type UpdateSchedulesRequest struct {
	Schedules []ScheduleInput `json:"schedules" validate:"dive"`
}

// BeoInput is one department BEO of an edit set.
type BeoInput struct {
	ID           int64  `json:"id" validate:"gte=0"`
	DepartmentID int64  `json:"department_id" validate:"required,gt=0"`
	PackageID    *int64 `json:"package_id,omitempty" validate:"omitempty,gt=0"`
	UserID       *int64 `json:"user_id,omitempty" validate:"omitempty,gt=0"`
	Notes        string `json:"notes" validate:"max=10000"`
}

// UpdateBeosRequest replaces the full BEO set of an order.
type UpdateBeosRequest struct {
	Beos []BeoInput `json:"beos" validate:"dive"`
}

// ListOrdersFilter narrows the order list.
type ListOrdersFilter struct {
	Status     OrderStatus `json:"status,omitempty"`
	BeoStatus  BeoStatus   `json:"status_beo,omitempty"`
	CustomerID int64       `json:"customer_id,omitempty"`
	Search     string      `json:"search,omitempty"`
	Limit      int         `json:"limit" validate:"gte=0,lte=200"`
	Offset     int         `json:"offset" validate:"gte=0"`
}

// TransitionResponse is returned by the workflow endpoints.
type TransitionResponse struct {
	OrderID   int64     `json:"order_id"`
	StatusBeo BeoStatus `json:"status_beo"`
	File      *BeoFile  `json:"file,omitempty"`
	Warning   string    `json:"warning,omitempty"`
}
