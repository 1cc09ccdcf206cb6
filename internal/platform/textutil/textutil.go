package textutil

import (
	"strings"

	"golang.org/x/text/width"
)

// NormalizeStringMap trims keys and values, removing entries with empty keys.
func NormalizeStringMap(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	result := make(map[string]string, len(values))
	for key, value := range values {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		result[trimmedKey] = strings.TrimSpace(value)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// NarrowWidth folds full-width characters to their ASCII equivalents so
// digits entered with an IME compare equal to their half-width forms.
func NarrowWidth(value string) string {
	return width.Narrow.String(value)
}

// DigitsOnly narrows the input and strips everything except ASCII digits.
// Phone numbers and card numbers are compared in this canonical form.
func DigitsOnly(value string) string {
	narrowed := NarrowWidth(value)
	var b strings.Builder
	b.Grow(len(narrowed))
	for _, r := range narrowed {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
