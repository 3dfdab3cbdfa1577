package world

import "fmt"

// Account is a registered player account. The username is unique and
// immutable after creation; the id never changes.
type Account struct {
	Id       string `json:"id"`
	Username string `json:"username"`

	// Name is the account's display name
	Name string `json:"name"`

	// PasswordHash is the bcrypt-hashed login credential
	PasswordHash string `json:"passwordHash"`

	// Last saved view window target, restored on the next connect
	ViewX int `json:"viewX"`
	ViewY int `json:"viewY"`
}

func (a *Account) Key() string {
	return a.Id
}

func (a *Account) Validate() error {
	if a.Id == "" {
		return fmt.Errorf("account id must be set")
	}
	if a.Username == "" {
		return fmt.Errorf("account username must be set")
	}
	return nil
}
