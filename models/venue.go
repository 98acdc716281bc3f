package models

type Venue struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Slug  string  `json:"slug"`
	City  *string `json:"city,omitempty"`
	State *string `json:"state,omitempty"`
}
