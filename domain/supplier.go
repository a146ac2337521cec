package domain

type Supplier struct {
	Code   string         `json:"code"`
	Name   string         `json:"name"`
	Active bool           `json:"active"`
	Items  []SupplierItem `json:"items"`
}

// SupplierItem tracks how many units of one item a supplier has
// delivered to date.
type SupplierItem struct {
	ItemCode string `json:"item_code"`
	Quantity int    `json:"quantity"`
}
