package woocommerce

// Page is one page of a collection endpoint. Total and TotalPages come from
// the X-WP-Total and X-WP-TotalPages headers.
type Page[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

type CategoryRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type Image struct {
	ID  int    `json:"id"`
	Src string `json:"src"`
	Alt string `json:"alt"`
}

type Product struct {
	ID               int           `json:"id"`
	Name             string        `json:"name"`
	Slug             string        `json:"slug"`
	Type             string        `json:"type"`
	Status           string        `json:"status"`
	SKU              string        `json:"sku"`
	Description      string        `json:"description"`
	ShortDescription string        `json:"short_description"`
	Price            string        `json:"price"`
	RegularPrice     string        `json:"regular_price"`
	SalePrice        string        `json:"sale_price"`
	StockStatus      string        `json:"stock_status"`
	StockQuantity    *int          `json:"stock_quantity"` // null unless stock is managed
	Categories       []CategoryRef `json:"categories"`
	Images           []Image       `json:"images"`
	DateCreated      string        `json:"date_created"`
}

type Address struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	Address1  string `json:"address_1"`
	City      string `json:"city"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

type LineItem struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	ProductID int    `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Total     string `json:"total"`
}

type Order struct {
	ID          int        `json:"id"`
	Number      string     `json:"number"`
	Status      string     `json:"status"`
	Currency    string     `json:"currency"`
	Total       string     `json:"total"`
	CustomerID  int        `json:"customer_id"`
	DateCreated string     `json:"date_created"`
	Billing     Address    `json:"billing"`
	Shipping    Address    `json:"shipping"`
	LineItems   []LineItem `json:"line_items"`
}

type Customer struct {
	ID          int     `json:"id"`
	Email       string  `json:"email"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	Username    string  `json:"username"`
	DateCreated string  `json:"date_created"`
	Billing     Address `json:"billing"`
	AvatarURL   string  `json:"avatar_url"`
}

type Coupon struct {
	ID           int     `json:"id"`
	Code         string  `json:"code"`
	Amount       string  `json:"amount"`
	DiscountType string  `json:"discount_type"`
	Description  string  `json:"description"`
	DateExpires  *string `json:"date_expires"`
	UsageCount   int     `json:"usage_count"`
	UsageLimit   *int    `json:"usage_limit"`
}

type Category struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Slug   string `json:"slug"`
	Parent int    `json:"parent"`
	Count  int    `json:"count"`
}
