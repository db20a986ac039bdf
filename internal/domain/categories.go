package domain

import "strings"

// CategoryOther is the fallback spending category.
const CategoryOther = "Other"

// Categories is the closed set of labels the categorizer may assign.
var Categories = []string{
	"Food & Drink",
	"Shopping",
	"Housing",
	"Utilities",
	"Transportation",
	"Entertainment",
	"Health",
	"Income",
	"Transfers",
	CategoryOther,
}

// NormalizeCategory maps a free-form label onto one of Categories,
// comparing case-insensitively. Unknown labels become CategoryOther.
func NormalizeCategory(label string) string {
	want := strings.ToUpper(strings.TrimSpace(label))
	for _, c := range Categories {
		if strings.ToUpper(c) == want {
			return c
		}
	}
	return CategoryOther
}
