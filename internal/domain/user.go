package domain

// AuthenticatedUser is the identity carried by a verified bearer token
type AuthenticatedUser struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}
