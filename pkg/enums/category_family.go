package enums

import "fmt"

// CategoryFamily groups product categories by how the lenses are produced.
type CategoryFamily string

const (
	CategoryFamilyStock      CategoryFamily = "stock"
	CategoryFamilyLaboratory CategoryFamily = "laboratory"
	CategoryFamilyFinished   CategoryFamily = "finished"
)

var validCategoryFamilies = []CategoryFamily{
	CategoryFamilyStock,
	CategoryFamilyLaboratory,
	CategoryFamilyFinished,
}

// String implements fmt.Stringer.
func (f CategoryFamily) String() string {
	return string(f)
}

// IsValid reports whether the value is a known CategoryFamily.
func (f CategoryFamily) IsValid() bool {
	for _, candidate := range validCategoryFamilies {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseCategoryFamily converts raw input into a CategoryFamily.
func ParseCategoryFamily(value string) (CategoryFamily, error) {
	for _, candidate := range validCategoryFamilies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid category family %q", value)
}
