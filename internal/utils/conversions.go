package utils

import "fmt"

// ToStringSlice renders each element, dropping those that render empty.
func ToStringSlice[T fmt.Stringer](slice []T) []string {
	stringSlice := make([]string, 0, len(slice))
	for _, v := range slice {
		if s := v.String(); s != "" {
			stringSlice = append(stringSlice, s)
		}
	}
	return stringSlice
}

// Value dereferences v, returning the zero value for nil. Used for the
// optional fields of API responses.
func Value[T any](v *T) T {
	if v == nil {
		return *new(T)
	}
	return *v
}

// Ptr returns a pointer to a copy of v, for optional request fields.
func Ptr[T any](v T) *T {
	return &v
}
