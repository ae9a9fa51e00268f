package entity

import "time"

// User represents an account row in the `users` table.
// The surrogate ID never leaves the process; PublicID is the only
// identifier handed to clients or referenced by session records.
type User struct {
	ID           int64     `db:"id"`
	PublicID     string    `db:"public_id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	DisplayName  string    `db:"display_name"`
	IsValid      bool      `db:"is_valid"`
	CreatedBy    int64     `db:"created_by"`
	UpdatedBy    int64     `db:"updated_by"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// PublicView is the projection returned over HTTP. It deliberately
// omits the surrogate key and the password hash.
type PublicView struct {
	PublicID    string `json:"public_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// Public returns the externally safe projection of the user.
func (u *User) Public() PublicView {
	return PublicView{PublicID: u.PublicID, Email: u.Email, DisplayName: u.DisplayName}
}
