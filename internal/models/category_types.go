package models

// Category is the model for the 'categories' table. Categories form a tree
// via ParentID; deleting a parent cascades to its children.
type Category struct {
	ID        int64   `json:"id" db:"id"`
	Name      string  `json:"name" db:"name"`
	Slug      string  `json:"slug" db:"slug"`
	Icon      *string `json:"icon,omitempty" db:"icon"`
	ParentID  *int64  `json:"parentId,omitempty" db:"parent_id"`
	SortOrder int     `json:"sortOrder" db:"sort_order"`
	IsActive  bool    `json:"isActive" db:"is_active"`
}

// CategoryNode is a category annotated for the in-memory tree response.
type CategoryNode struct {
	Category
	ProductsCount int             `json:"productsCount"`
	Children      []*CategoryNode `json:"children"`
}
