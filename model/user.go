package model

// User model
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	// PasswordHash is a base64-wrapped bcrypt digest. Plaintext
	// passwords never leave the login/registration handlers.
	PasswordHash string `json:"password_hash"`
	IsRoot       bool   `json:"is_root"`
}
