package domain

// ProductInfo is the authoritative product data used to enrich cart lines.
type ProductInfo struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	Price         int64    `json:"price"`
	StockQuantity *int     `json:"stock_quantity,omitempty"`
	CategoryIDs   []string `json:"category_ids,omitempty"`
}
