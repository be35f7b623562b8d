package auth

import (
	"crypto/subtle"
	"errors"

	"github.com/2beens/catalogguard/pkg"
)

var ErrWrongCredentials = errors.New("wrong credentials")

type Admin struct {
	Username     string
	PasswordHash string
}

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CheckCredentials always runs the bcrypt comparison, so a wrong username takes as long as a wrong password.
func (a *Admin) CheckCredentials(creds Credentials) error {
	usernameOK := subtle.ConstantTimeCompare([]byte(creds.Username), []byte(a.Username)) == 1
	passwordOK := pkg.CheckPasswordHash(creds.Password, a.PasswordHash)
	if !usernameOK || !passwordOK {
		return ErrWrongCredentials
	}
	return nil
}
