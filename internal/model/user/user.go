package user

// User is a registered account. Password is kept as entered: the credential
// store is demo grade and does not hash.
type User struct {
	Username string `json:"username"`
	Password string `json:"-"`
}
