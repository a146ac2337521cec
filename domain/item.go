package domain

type Item struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	Quantity     int    `json:"quantity"`
	SupplierCode string `json:"supplier_code"`
}
