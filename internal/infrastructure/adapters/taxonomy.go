package adapters

import "strings"

// marketplaceCategory holds the marketplace leaf category and the shipping
// estimate used when listing an item of a shop category.
type marketplaceCategory struct {
	CategoryID  string
	WeightKg    float64
	PackageType string
}

type categoryKeyword struct {
	Keyword  string
	Category marketplaceCategory
}

// categoryKeywords maps shop categories to marketplace categories. A shop
// category matches the first entry whose keyword it contains, so compound
// names like "vintage clothing" still land on clothing. Unknown categories
// fall through to defaultCategory.
var categoryKeywords = []categoryKeyword{
	{"clothing", marketplaceCategory{CategoryID: "11450", WeightKg: 0.8, PackageType: "PACKAGE_THICK_ENVELOPE"}},
	{"shoes", marketplaceCategory{CategoryID: "93427", WeightKg: 1.5, PackageType: "MAILING_BOX"}},
	{"accessories", marketplaceCategory{CategoryID: "4251", WeightKg: 0.3, PackageType: "PACKAGE_THICK_ENVELOPE"}},
	{"jewelry", marketplaceCategory{CategoryID: "281", WeightKg: 0.1, PackageType: "PACKAGE_THICK_ENVELOPE"}},
	{"books", marketplaceCategory{CategoryID: "267", WeightKg: 0.6, PackageType: "MAILING_BOX"}},
	{"toys", marketplaceCategory{CategoryID: "220", WeightKg: 0.9, PackageType: "MAILING_BOX"}},
	{"furniture", marketplaceCategory{CategoryID: "3197", WeightKg: 15.0, PackageType: "BULKY_GOODS"}},
	{"home", marketplaceCategory{CategoryID: "11700", WeightKg: 2.0, PackageType: "MAILING_BOX"}},
	{"electronics", marketplaceCategory{CategoryID: "293", WeightKg: 1.2, PackageType: "MAILING_BOX"}},
}

var defaultCategory = marketplaceCategory{
	CategoryID:  "99",
	WeightKg:    1.0,
	PackageType: "MAILING_BOX",
}

// mapCategory resolves the marketplace category for a shop category
func mapCategory(shopCategory string) marketplaceCategory {
	normalized := strings.ToLower(shopCategory)
	for _, entry := range categoryKeywords {
		if strings.Contains(normalized, entry.Keyword) {
			return entry.Category
		}
	}
	return defaultCategory
}
