package domain

import (
	"strings"
	"time"
)

const (
	UserFieldID            = "_id"
	UserFieldUsername      = "username"
	UserFieldEmail         = "email"
	UserFieldPassword      = "password"
	UserFieldToken         = "token"
	UserFieldEmailVerified = "emailVerified"
	UserFieldJoinDate      = "joinDate"
)

var UserFields = []string{
	UserFieldID,
	UserFieldUsername,
	UserFieldEmail,
	UserFieldPassword,
	UserFieldToken,
	UserFieldEmailVerified,
	UserFieldJoinDate,
}

// User is an account. Password only ever holds a one-way hash.
type User struct {
	ID            ID        `json:"_id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	Password      string    `json:"-"`
	Token         string    `json:"token,omitempty"`
	EmailVerified bool      `json:"emailVerified"`
	JoinDate      time.Time `json:"joinDate"`
}

// UserFilter selects users. Unset fields do not constrain the result.
type UserFilter struct {
	ID            *ID
	IDs           IDs
	Username      *string
	Email         *string
	Token         *string
	EmailVerified *bool
}

func UserByID(id ID) UserFilter {
	return UserFilter{ID: &id}
}

func UserByUsername(username string) UserFilter {
	return UserFilter{Username: &username}
}

// UserPatch lists the user fields a caller may change. Nil fields are left untouched.
type UserPatch struct {
	Username      *string `json:"username,omitempty"`
	Email         *string `json:"email,omitempty"`
	Password      *string `json:"password,omitempty"`
	Token         *string `json:"token,omitempty"`
	EmailVerified *bool   `json:"emailVerified,omitempty"`
}

func (p UserPatch) IsEmpty() bool {
	return p.Username == nil && p.Email == nil && p.Password == nil && p.Token == nil && p.EmailVerified == nil
}

func (p UserPatch) Validate() error {
	if p.Username != nil && strings.TrimSpace(*p.Username) == "" {
		return ValidationError{Field: UserFieldUsername, Reason: "must not be empty"}
	}
	if p.Password != nil && *p.Password == "" {
		return ValidationError{Field: UserFieldPassword, Reason: "must not be empty"}
	}
	return nil
}

// Fields returns the changed fields keyed by field name. The password is never included.
func (p UserPatch) Fields() map[string]any {
	fields := map[string]any{}
	if p.Username != nil {
		fields[UserFieldUsername] = *p.Username
	}
	if p.Email != nil {
		fields[UserFieldEmail] = *p.Email
	}
	if p.Token != nil {
		fields[UserFieldToken] = *p.Token
	}
	if p.EmailVerified != nil {
		fields[UserFieldEmailVerified] = *p.EmailVerified
	}
	return fields
}

// Apply merges the patch into u. Password is copied as given, so hash it first.
func (p UserPatch) Apply(u *User) {
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Password != nil {
		u.Password = *p.Password
	}
	if p.Token != nil {
		u.Token = *p.Token
	}
	if p.EmailVerified != nil {
		u.EmailVerified = *p.EmailVerified
	}
}
