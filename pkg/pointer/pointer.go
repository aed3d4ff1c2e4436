package pointer

// String returns a pointer to the provided string value
func String(value string) *string {
	return &value
}

// StringCopy returns a pointer that's a copy of the provided value
func StringCopy(value *string) *string {
	if value == nil {
		return nil
	}

	return String(*value)
}
