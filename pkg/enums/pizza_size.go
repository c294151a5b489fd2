package enums

import "fmt"

// PizzaSize is the size a cart/order line was placed at.
type PizzaSize string

const (
	PizzaSizeSmall  PizzaSize = "small"
	PizzaSizeMedium PizzaSize = "medium"
	PizzaSizeLarge  PizzaSize = "large"
)

var validPizzaSizes = []PizzaSize{
	PizzaSizeSmall,
	PizzaSizeMedium,
	PizzaSizeLarge,
}

// String implements fmt.Stringer.
func (s PizzaSize) String() string {
	return string(s)
}

// IsValid reports whether the value is a known PizzaSize.
func (s PizzaSize) IsValid() bool {
	for _, candidate := range validPizzaSizes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePizzaSize converts raw input into a PizzaSize.
func ParsePizzaSize(value string) (PizzaSize, error) {
	for _, candidate := range validPizzaSizes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pizza size %q", value)
}
