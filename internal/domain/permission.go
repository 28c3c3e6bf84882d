package domain

import "fmt"

type Permission string

const (
	PermissionRead  Permission = "read"
	PermissionEdit  Permission = "edit"
	PermissionOwner Permission = "owner"
)

func ParsePermission(s string) (Permission, error) {
	switch Permission(s) {
	case PermissionRead, PermissionEdit, PermissionOwner:
		return Permission(s), nil
	default:
		return "", ValidationError{Field: "permission", Reason: fmt.Sprintf("unknown permission %q", s)}
	}
}

// Permissions is the set of effective labels of a user on a document.
type Permissions []Permission
