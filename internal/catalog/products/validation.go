package products

import (
	"strings"

	"github.com/stockroom-erp/stockroom/internal/shared"
)

func (s *Service) validate(p Product) error {
	if strings.TrimSpace(p.SKU) == "" {
		return shared.NewValidationError("sku", "required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return shared.NewValidationError("name", "required")
	}
	if strings.TrimSpace(p.Unit) == "" {
		return shared.NewValidationError("unit", "required")
	}
	if p.LowStockThreshold < 0 {
		return shared.NewValidationError("low_stock_threshold", "must be >= 0")
	}
	return nil
}
