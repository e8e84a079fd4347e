package models

import "fmt"

// CheckoutMode режим оплати продукту
type CheckoutMode string

const (
	CheckoutModePayment      CheckoutMode = "payment"
	CheckoutModeSubscription CheckoutMode = "subscription"
)

// Product представляє продукт, який можна купити
type Product struct {
	ID          string       `json:"id"`
	PriceID     string       `json:"price_id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Price       float64      `json:"price"`
	Mode        CheckoutMode `json:"mode"`
	Popular     bool         `json:"popular,omitempty"`
}

// DisplayPrice форматує ціну для відображення
func (p Product) DisplayPrice() string {
	return fmt.Sprintf("$%.2f", p.Price)
}

// CheckoutRequest представляє запит на створення checkout сесії
type CheckoutRequest struct {
	PriceID string `json:"price_id" form:"price_id" binding:"required"`
}

// CheckoutResponse представляє відповідь з URL оплати
type CheckoutResponse struct {
	URL string `json:"url"`
}
