package foundation

import (
	"slices"
	"strings"
)

// defaultNormalizer provides standard string normalization.
func defaultNormalizer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Normalizer maps loosely written spellings of an enum to its values.
type Normalizer[T comparable] struct {
	validValues map[string]T
}

// NewNormalizer creates a normalizer with a map of valid string->value pairs.
func NewNormalizer[T comparable](values map[string]T) *Normalizer[T] {
	normalized := make(map[string]T, len(values))
	for k, v := range values {
		normalized[defaultNormalizer(k)] = v
	}
	return &Normalizer[T]{validValues: normalized}
}

// Normalize converts raw to the enum value, ignoring case and surrounding
// whitespace. ok is false when raw names no known value.
func (n *Normalizer[T]) Normalize(raw string) (value T, ok bool) {
	value, ok = n.validValues[defaultNormalizer(raw)]
	return value, ok
}

// ValidKeys returns the accepted spellings in sorted order.
func (n *Normalizer[T]) ValidKeys() []string {
	keys := make([]string, 0, len(n.validValues))
	for k := range n.validValues {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
