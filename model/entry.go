package model

import "time"

// Entry model
type Entry struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Subject     string `json:"subject"`
	PersonName  string `json:"person_name"`
	PhoneNumber string `json:"phone_number"`
	Age         int    `json:"age"`
	Email       string `json:"email"`
	Details     string `json:"details"`
	// AdditionalLinks holds links or social media profiles, free-form.
	AdditionalLinks string `json:"additional_links"`
	// Creator is the username captured when the entry was made. It is
	// a plain string copy, not a reference: renaming or deleting the
	// user leaves it untouched.
	Creator   string    `json:"creator"`
	CreatedAt time.Time `json:"created_at"`
}
