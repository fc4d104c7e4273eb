package chat

import "time"

// Session is one login of one user. The token handed to the client refers
// to it by ID; revoking the session logs the client out.
type Session struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	LoggedIn  bool      `json:"loggedIn"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}
