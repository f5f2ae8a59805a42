package model

// User is the minimal identity the backend exposes for an account.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Valid reports whether the user carries a usable identity.
func (u *User) Valid() bool {
	return u != nil && u.Username != ""
}

// Clone returns a copy of u, or nil when u is nil.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// Credentials is the JSON body of /register and /token.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is returned by POST /token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}
