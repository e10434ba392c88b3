package checkout

import (
	"fmt"
	"strings"

	"github.com/anisha-singhal/Lumera-sub000/models"
	"github.com/google/uuid"
)

// MapItems turns cart lines into order lines. The client declares each
// line's kind: catalog lines must reference a product by UUID, custom lines
// must not reference one.
func MapItems(items []models.CartItem) ([]models.OrderItem, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("order has no items")
	}
	out := make([]models.OrderItem, 0, len(items))
	for i, it := range items {
		name := strings.TrimSpace(it.Name)
		if name == "" {
			return nil, fmt.Errorf("item %d: name is required", i)
		}
		if it.Quantity <= 0 || it.Quantity > models.MaxQuantity {
			return nil, fmt.Errorf("item %d: quantity must be between 1 and %d", i, models.MaxQuantity)
		}
		if it.UnitPrice <= 0 || it.UnitPrice > models.MaxUnitPrice {
			return nil, fmt.Errorf("item %d: unit price must be between 1 and %d paise", i, models.MaxUnitPrice)
		}

		line := models.OrderItem{
			Kind:        it.Kind,
			Name:        name,
			Description: strings.TrimSpace(it.Description),
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
			LineTotal:   it.UnitPrice * int64(it.Quantity),
		}

		switch it.Kind {
		case models.LineItemCatalog:
			id, err := uuid.Parse(it.ProductID)
			if err != nil {
				return nil, fmt.Errorf("item %d: catalog items need a valid product id: %w", i, err)
			}
			line.ProductID = &id
		case models.LineItemCustom:
			if it.ProductID != "" {
				return nil, fmt.Errorf("item %d: custom items cannot reference a product", i)
			}
		default:
			return nil, fmt.Errorf("item %d: unknown kind %q", i, it.Kind)
		}
		out = append(out, line)
	}
	return out, nil
}
