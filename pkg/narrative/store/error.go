package store

// NotFoundError is returned when no state exists for a narrative key.
type NotFoundError struct {
	Key string
}

func (e NotFoundError) Error() string {
	if e.Key == "" {
		return "narrative state not found"
	}

	return "narrative state not found: " + e.Key
}
