package models

// CategoryType represents whether a category classifies spending or income
type CategoryType string

const (
	CategoryTypeExpense CategoryType = "expense"
	CategoryTypeIncome  CategoryType = "income"
)

// CategoryKind distinguishes grouping nodes from selectable leaf entries
type CategoryKind string

const (
	CategoryKindFolder CategoryKind = "folder"
	CategoryKindEntry  CategoryKind = "entry"
)

// Category represents a node in the spending/income taxonomy. The parent
// graph is acyclic; a node can never become its own ancestor. Exactly one
// shadow category exists per CategoryType and holds synthetic
// balance-adjustment operations only.
type Category struct {
	Base
	Name                string       `gorm:"not null" json:"name"`
	Kind                CategoryKind `gorm:"not null;default:'entry'" json:"kind"`
	Type                CategoryType `gorm:"not null" json:"type"`
	ParentID            *string      `gorm:"type:uuid;index" json:"parent_id,omitempty"`
	Icon                string       `json:"icon"`
	Color               string       `json:"color"`
	IsShadow            bool         `gorm:"default:false;index" json:"is_shadow"`
	ExcludeFromForecast bool         `gorm:"default:false" json:"exclude_from_forecast"`

	// Relationships
	Parent   *Category  `gorm:"foreignKey:ParentID" json:"parent,omitempty"`
	Children []Category `gorm:"foreignKey:ParentID" json:"children,omitempty"`
}

// ShadowCategories is the resolved singleton pair of system categories used
// as the category of last resort for balance adjustments.
type ShadowCategories struct {
	Expense *Category
	Income  *Category
}
