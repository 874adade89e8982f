package enums

import "fmt"

// CheckoutType tags a checkout session's payment mode. It is written into
// the session metadata at creation and echoed back verbatim in every event
// and query about that session.
type CheckoutType string

const (
	CheckoutTypeSubscription CheckoutType = "subscription"
	CheckoutTypeOnetime      CheckoutType = "onetime"
)

var validCheckoutTypes = []CheckoutType{
	CheckoutTypeSubscription,
	CheckoutTypeOnetime,
}

// String implements fmt.Stringer.
func (c CheckoutType) String() string {
	return string(c)
}

// IsValid reports whether the value is known.
func (c CheckoutType) IsValid() bool {
	for _, candidate := range validCheckoutTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCheckoutType converts raw metadata input into a CheckoutType.
func ParseCheckoutType(value string) (CheckoutType, error) {
	for _, candidate := range validCheckoutTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid checkout type %q", value)
}
