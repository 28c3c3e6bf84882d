package domain

import "fmt"

// ValidateProjection rejects projection names that are not fields of the entity.
func ValidateProjection(fields []string, known []string) error {
	for _, f := range fields {
		found := false
		for _, k := range known {
			if f == k {
				found = true
				break
			}
		}
		if !found {
			return ValidationError{Field: "projection", Reason: fmt.Sprintf("unknown field %q", f)}
		}
	}
	return nil
}
