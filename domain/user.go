package domain

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

type User struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Active       bool   `json:"active"`
	// System marks a bootstrap account that cannot be edited,
	// deactivated or deleted through the API.
	System bool `json:"system"`
}
