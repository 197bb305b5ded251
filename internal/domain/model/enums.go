package model

// Category is a vendor metric domain polled once per day.
type Category string

const (
	CategoryActivity Category = "activity"
	CategoryHeart    Category = "heart"
	CategoryProfile  Category = "profile"
	CategorySettings Category = "settings"
	CategorySleep    Category = "sleep"
	CategoryWeight   Category = "weight"
)

// Categories lists every tracked category in polling order. The order is
// fixed so that each cycle visits categories deterministically.
func Categories() []Category {
	return []Category{
		CategoryActivity,
		CategoryHeart,
		CategoryProfile,
		CategorySettings,
		CategorySleep,
		CategoryWeight,
	}
}

// Valid reports whether c is one of the tracked categories.
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// UnitSystem is the measurement system the vendor reports values in.
type UnitSystem string

const (
	UnitSystemMetric UnitSystem = "metric"
	UnitSystemUS     UnitSystem = "us"
	UnitSystemUK     UnitSystem = "uk"
)

// UnitSystemForLocale maps an Accept-Language locale to the unit system the
// vendor applies for it. Anything other than en_US and en_GB is metric.
func UnitSystemForLocale(locale string) UnitSystem {
	switch locale {
	case "en_US":
		return UnitSystemUS
	case "en_GB":
		return UnitSystemUK
	default:
		return UnitSystemMetric
	}
}
