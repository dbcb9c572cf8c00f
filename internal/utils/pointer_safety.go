package utils

// Value dereferences v, giving the zero value for a nil pointer.
func Value[T any](v *T) T {
	if v == nil {
		return *new(T)
	}
	return *v
}

// Ptr returns a pointer to v, for the optional token response fields.
func Ptr[T any](v T) *T {
	return &v
}
