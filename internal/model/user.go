package model

// User is the operator identified by a verified bearer token. Accounts themselves
// live with the external auth service.
type User struct {
	ID    int    `json:"id"`
	Email string `json:"email,omitempty"`
}
