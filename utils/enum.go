package utils

// GetNextEnum returns the value after current, wrapping past max to zero
func GetNextEnum[T ~int](current T, max T) T {
	next := current + 1
	if next > max {
		return 0
	}
	return next
}

// GetPrevEnum returns the value before current, wrapping below zero to max
func GetPrevEnum[T ~int](current T, max T) T {
	prev := current - 1
	if prev < 0 {
		return max
	}
	return prev
}
