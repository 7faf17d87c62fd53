package domain

import "time"

type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleAttendant Role = "ATTENDANT"
)

type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Password  string    `json:"-"`
	Active    bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Invoice is the billing record of a stay. It is opened with a zero total
// at check-in and settled at check-out.
type Invoice struct {
	ID             string      `json:"id"`
	Number         string      `json:"invoice_number"`
	Plate          string      `json:"plate"`
	VehicleType    VehicleType `json:"vehicle_type,omitempty"`
	TotalAmount    float64     `json:"total_amount"`
	ParkingMinutes int         `json:"parking_time"`
	CreatedBy      string      `json:"created_by,omitempty"`
	CreatedAt      time.Time   `json:"date"`
}
