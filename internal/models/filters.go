package models

// UserFilters carries the optional matching criteria for count and find.
// Nil fields are left out of the resulting query.
type UserFilters struct {
	Email     *string `json:"email,omitempty"`
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	IsActive  *bool   `json:"isActive,omitempty"`
	IsAdmin   *bool   `json:"isAdmin,omitempty"`
}

// UserUpdate is the payload for creating or updating a user. A set ID
// means update, an empty one means create. Nil fields are not touched.
type UserUpdate struct {
	ID        string
	Email     *string
	Password  *string
	IsActive  *bool
	IsAdmin   *bool
	FirstName *string
	LastName  *string
}
