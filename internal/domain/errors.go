package domain

import "errors"

var (
	// Ошибка отсутствующего идентификатора продавца.
	ErrSellerRequired = errors.New("seller_id is required")
	// Ошибка отсутствующего имени покупателя.
	ErrCustomerRequired = errors.New("customer name is required")
	// Ошибка неподдерживаемого способа оплаты.
	ErrPaymentMethodInvalid = errors.New("payment method is not supported")
	// Ошибка отсутствия хотя бы одной позиции в продаже.
	ErrLinesRequired = errors.New("sale must contain at least one line")
	// Ошибка отрицательной суммы продажи.
	ErrTotalNegative = errors.New("total_minor must be non-negative")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrLineQtyInvalid = errors.New("line qty must be greater than zero")
	// Ошибка, если зафиксированная цена позиции отрицательная.
	ErrLinePriceInvalid = errors.New("line unit price must be non-negative")
	// Ошибка несоответствия суммы продажи и сумм позиций.
	ErrTotalMismatch = errors.New("sale total does not match lines sum")

	// Ошибка отсутствующего имени в записи каталога.
	ErrProductNameRequired = errors.New("product name is required")
	// Ошибка отрицательной цены в записи каталога.
	ErrProductPriceInvalid = errors.New("product price must be non-negative")
	// Ошибка отрицательного складского остатка.
	ErrStockNegative = errors.New("stock must be non-negative")

	// ErrInvalidKind возвращается при неизвестном виде товара.
	// Это ошибка вызывающей стороны, а не промах по хранилищу.
	ErrInvalidKind = errors.New("unknown product kind")
	// ErrProductNotFound возвращается, если товар не найден в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrInsufficientStock — остатка недостаточно для запрошенного количества.
	// Возвращается и на этапе валидации, и при условном списании в момент коммита.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrEmptyCart — после отбрасывания пустых строк в корзине не осталось позиций.
	ErrEmptyCart = errors.New("cart contains no valid items")

	// ErrSaleNotFound возвращается, если продажа не найдена в репозитории.
	ErrSaleNotFound = errors.New("sale not found")
	// ErrSaleAlreadyCancelled — повторная отмена уже отменённой продажи.
	ErrSaleAlreadyCancelled = errors.New("sale is already cancelled")
	// ErrSaleNotCancellable — продажа в статусе, из которого отмена невозможна.
	ErrSaleNotCancellable = errors.New("sale cannot be cancelled")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsInsufficientStock проверяет, является ли ошибка нехваткой остатка.
func IsInsufficientStock(err error) bool {
	return errors.Is(err, ErrInsufficientStock)
}

// IsNotFound проверяет, является ли ошибка промахом по каталогу или продажам.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound) || errors.Is(err, ErrSaleNotFound)
}
