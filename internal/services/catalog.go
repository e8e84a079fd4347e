package services

import "github.com/sabalioglu/vidgen/internal/models"

// staticCatalog незмінний список продуктів
type staticCatalog struct {
	products []models.Product
}

// DefaultProducts каталог за замовчуванням
func DefaultProducts() []models.Product {
	return []models.Product{
		{
			ID:          "prod_T75O4hPiRNBlMM",
			PriceID:     "price_1SArE7Emd2R9npIsFqTWkgtL",
			Name:        "VideoGen",
			Description: "Ai Video Generation",
			Price:       9.99,
			Mode:        models.CheckoutModePayment,
			Popular:     true,
		},
	}
}

// NewCatalog створює каталог; порожній список замінюється каталогом за замовчуванням
func NewCatalog(products []models.Product) Catalog {
	if len(products) == 0 {
		products = DefaultProducts()
	}

	items := make([]models.Product, len(products))
	copy(items, products)
	for i := range items {
		if items[i].Mode == "" {
			items[i].Mode = models.CheckoutModePayment
		}
	}
	return &staticCatalog{products: items}
}

func (c *staticCatalog) All() []models.Product {
	items := make([]models.Product, len(c.products))
	copy(items, c.products)
	return items
}

func (c *staticCatalog) ByPriceID(priceID string) (models.Product, bool) {
	for _, p := range c.products {
		if p.PriceID == priceID {
			return p, true
		}
	}
	return models.Product{}, false
}
