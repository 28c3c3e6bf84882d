package quire

import (
	"fmt"
	"net/mail"
	"strings"
)

// Validate checks the fields of a registration request. It is shared by the
// registration client and the server endpoint.
func (r RegisterRequest) Validate() error {
	if strings.TrimSpace(r.Username) == "" {
		return fmt.Errorf("username is required")
	}
	if strings.ContainsAny(r.Username, " \t\r\n") {
		return fmt.Errorf("username must not contain whitespace")
	}
	if r.Password == "" {
		return fmt.Errorf("password is required")
	}
	if r.Email == "" {
		return fmt.Errorf("email is required")
	}
	if !IsEmail(r.Email) {
		return fmt.Errorf("invalid email address")
	}
	return nil
}

func IsEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	return addr.Address == s
}
