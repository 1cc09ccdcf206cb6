package textutil

import (
	"reflect"
	"testing"
)

func TestNormalizeStringMap(t *testing.T) {
	t.Run("trims keys and values", func(t *testing.T) {
		input := map[string]string{
			" Gift ":  " Wrap ",
			"note":    " Fragile ",
			"empty":   " ",
			" ":       "ignored",
			"":        "ignored",
		}

		expected := map[string]string{
			"Gift":  "Wrap",
			"note":  "Fragile",
			"empty": "",
		}

		actual := NormalizeStringMap(input)
		if !reflect.DeepEqual(actual, expected) {
			t.Fatalf("expected %#v got %#v", expected, actual)
		}
	})

	t.Run("returns nil for nil or empty input", func(t *testing.T) {
		if NormalizeStringMap(nil) != nil {
			t.Fatal("expected nil for nil input")
		}
		if NormalizeStringMap(map[string]string{}) != nil {
			t.Fatal("expected nil for empty map")
		}
	})
}

func TestNarrowWidth(t *testing.T) {
	if got := NarrowWidth("０１２３４５６７８９"); got != "0123456789" {
		t.Fatalf("expected ASCII digits, got %q", got)
	}
}

func TestDigitsOnly(t *testing.T) {
	cases := map[string]string{
		"(555) 123-4567":      "5551234567",
		"＋１ ５５５ １２３４":          "15551234",
		"4111 1111 1111 1111": "4111111111111111",
		"no digits here":      "",
	}
	for input, expected := range cases {
		if got := DigitsOnly(input); got != expected {
			t.Fatalf("DigitsOnly(%q) = %q, expected %q", input, got, expected)
		}
	}
}
