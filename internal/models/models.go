// Package models declares the JSON shapes the storefront API returns.
package models

type OwnerType string

const (
	OwnerProduct  OwnerType = "Product"
	OwnerCategory OwnerType = "Category"
	OwnerSlider   OwnerType = "Slider"
	OwnerUser     OwnerType = "User"
)

type Image struct {
	ID        int       `json:"id"`
	OwnerID   int       `json:"ownerId"`
	OwnerType OwnerType `json:"ownerType"`
	URL       string    `json:"url"`
	AltText   string    `json:"altText"`
	Position  int       `json:"position"`
}

type Product struct {
	ID            int            `json:"id"`
	CategoryID    int            `json:"categoryId"`
	Name          string         `json:"name"`
	Brand         string         `json:"brand"`
	Price         float64        `json:"price"`
	Description   string         `json:"description"`
	Specs         map[string]any `json:"specs"`
	StockQuantity int            `json:"stockQuantity"`
	Images        []Image        `json:"images"`
}

// ImageRef is the trimmed image an order line carries.
type ImageRef struct {
	URL      string `json:"url"`
	AltText  string `json:"altText"`
	Position int    `json:"position"`
}

type OrderItem struct {
	ID              int       `json:"id"`
	ProductID       int       `json:"productId"`
	Name            string    `json:"name"`
	Brand           string    `json:"brand"`
	PriceAtPurchase float64   `json:"priceAtPurchase"`
	Quantity        int       `json:"quantity"`
	FirstImage      *ImageRef `json:"firstImage,omitempty"`
}

type Order struct {
	ID         int         `json:"id"`
	TotalPrice float64     `json:"totalPrice"`
	Status     string      `json:"status"`
	CreatedAt  string      `json:"createdAt"`
	Items      []OrderItem `json:"items"`
}

// ItemCount sums the quantities of all lines.
func (o Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

type UserProfile struct {
	ID          int            `json:"id"`
	Email       string         `json:"email"`
	Name        string         `json:"name"`
	Role        string         `json:"role"`
	ProfileInfo map[string]any `json:"profileInfo,omitempty"`
	Images      []any          `json:"images,omitempty"`
}
