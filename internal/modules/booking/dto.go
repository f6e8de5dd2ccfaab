package booking

type CustomerInput struct {
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Phone     string `json:"phone" binding:"required"`
}

type CreateRequest struct {
	PropertyID      int64         `json:"property_id" binding:"required"`
	Customer        CustomerInput `json:"customer" binding:"required"`
	CheckInDate     string        `json:"check_in_date" binding:"required"`
	CheckOutDate    string        `json:"check_out_date" binding:"required"`
	NumberOfGuests  int           `json:"number_of_guests"`
	RoomNumber      *string       `json:"room_number"`
	TotalAmount     *float64      `json:"total_amount"`
	SpecialRequests string        `json:"special_requests"`

	// Filled from the authenticated context, not the body.
	CreatedByID int64 `json:"-"`
}

type ListFilter struct {
	PropertyID     int64
	PropertyType   string
	Status         string
	CustomerID     int64
	IncludeDeleted bool
	Limit          int
	Offset         int
}
