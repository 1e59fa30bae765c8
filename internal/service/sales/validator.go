package sales

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/marcopolo2323/tienda-celular/internal/domain"
)

// RawItem — сырая строка корзины в том виде, в каком её присылает web-граница.
// Формы присылают разреженные массивы, поэтому значения приходят строками
// и могут быть пустыми.
type RawItem struct {
	Kind      string `json:"kind"`
	ProductID string `json:"product_id"`
	Qty       string `json:"qty"`
	Notes     string `json:"notes,omitempty"`
}

// validatedItem — позиция корзины после разрешения по каталогу,
// с зафиксированной ценой и отображаемым именем.
type validatedItem struct {
	product domain.Product
	qty     int32
	notes   string
}

// validator проверяет корзину по правилам движка продаж.
type validator struct {
	catalog domain.CatalogLookup
}

// validate применяет правила к каждой строке корзины. Строки с пустым или
// нечитаемым идентификатором/количеством молча пропускаются (пустые слоты
// формы); первая содержательная ошибка прерывает обработку целиком.
// Если после фильтрации позиций не осталось — ErrEmptyCart.
func (v *validator) validate(raw []RawItem) ([]validatedItem, error) {
	items := make([]validatedItem, 0, len(raw))

	for _, row := range raw {
		id, qty, ok := parseCartRow(row)
		if !ok {
			continue
		}

		kind := domain.ProductKind(row.Kind)
		product, err := v.catalog.Resolve(kind, id)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrProductNotFound):
			return nil, fmt.Errorf("%w: %s/%d", domain.ErrProductNotFound, row.Kind, id)
		case errors.Is(err, domain.ErrInvalidKind):
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidKind, row.Kind)
		default:
			return nil, fmt.Errorf("resolve %s/%d: %w", row.Kind, id, err)
		}

		// Для физических товаров проверяем остаток уже на валидации,
		// чтобы отказать раньше; окончательную гарантию даёт условное
		// списание в момент коммита.
		if kind.Stocked() && qty > product.Stock {
			return nil, fmt.Errorf("%w: %s", domain.ErrInsufficientStock, product.Name)
		}

		items = append(items, validatedItem{
			product: product,
			qty:     qty,
			notes:   strings.TrimSpace(row.Notes),
		})
	}

	if len(items) == 0 {
		return nil, domain.ErrEmptyCart
	}
	return items, nil
}

// parseCartRow разбирает идентификатор и количество из строки формы.
// Возвращает ok=false для строк, которые нужно молча пропустить.
func parseCartRow(row RawItem) (int64, int32, bool) {
	rawID := strings.TrimSpace(row.ProductID)
	rawQty := strings.TrimSpace(row.Qty)
	if rawID == "" || rawQty == "" {
		return 0, 0, false
	}

	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	qty, err := strconv.ParseInt(rawQty, 10, 32)
	if err != nil || qty <= 0 {
		return 0, 0, false
	}

	return id, int32(qty), true
}
