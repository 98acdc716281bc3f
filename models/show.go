package models

import "time"

type Show struct {
	ID       string    `json:"id"`
	VenueID  string    `json:"venue_id"`
	ShowDate time.Time `json:"show_date"`
	ShowName *string   `json:"show_name,omitempty"`

	// Venue is populated on joined reads; nil otherwise.
	Venue *Venue `json:"venue,omitempty"`
}
