package domain

import "time"

// Product — товар каталога. Ядро заказов меняет только остаток.
type Product struct {
	ID            string
	Name          string
	PriceMinor    int64
	StockQuantity int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate проверяет поля товара перед сохранением.
func (p *Product) Validate() []error {
	var errs []error

	if p.ID == "" {
		errs = append(errs, ErrProductIDRequired)
	}
	if p.PriceMinor < 0 {
		errs = append(errs, ErrItemPriceInvalid)
	}
	if p.StockQuantity < 0 {
		errs = append(errs, ErrStockNegative)
	}

	return errs
}

// CheckAvailability сверяет текущий остаток с запрошенным количеством.
// Возвращает OutOfStockError при нулевом остатке и InsufficientStockError,
// если товара меньше, чем просят.
func (p *Product) CheckAvailability(requested int64) error {
	if p.StockQuantity <= 0 {
		return &OutOfStockError{ProductID: p.ID, ProductName: p.Name}
	}
	if p.StockQuantity < requested {
		return &InsufficientStockError{
			ProductID:   p.ID,
			ProductName: p.Name,
			Requested:   requested,
			Available:   p.StockQuantity,
		}
	}
	return nil
}
