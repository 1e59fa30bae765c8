package domain

import "time"

// CatalogLookup разрешает пару (вид, идентификатор) в запись каталога.
// Побочных эффектов нет; неизвестный вид — ErrInvalidKind, промах — ErrProductNotFound.
type CatalogLookup interface {
	Resolve(kind ProductKind, id int64) (Product, error)
}

// CatalogRepository описывает требования к хранилищу каталога.
type CatalogRepository interface {
	CatalogLookup

	// DecrementStock атомарно списывает qty единиц остатка: «уменьшить на qty,
	// только если остаток >= qty». При нехватке возвращает ErrInsufficientStock,
	// ничего не меняя. Для не-Stocked видов — no-op.
	DecrementStock(kind ProductKind, id int64, qty int32) error
	// RestoreStock возвращает qty единиц на склад (компенсация при отмене).
	RestoreStock(kind ProductKind, id int64, qty int32) error
	// ListLowStock возвращает физические товары с остатком ниже порога
	// (смартфоны < 5, аксессуары < 10).
	ListLowStock() ([]Product, error)
}

// SaleRepository описывает требования к хранилищу продаж.
type SaleRepository interface {
	// Create сохраняет продажу целиком: заголовок, позиции и списание остатков
	// по Stocked-позициям выполняются как одна атомарная операция. Если хотя бы
	// одно условное списание не проходит, не сохраняется ничего и возвращается
	// ошибка с ErrInsufficientStock в цепочке.
	Create(sale Sale) error
	// Get возвращает продажу по идентификатору или ErrSaleNotFound, если её нет.
	Get(id string) (Sale, error)
	// Cancel переводит продажу completed → cancelled и возвращает остатки на склад.
	// Проверка статуса и переход защищены от гонки: из двух конкурентных отмен
	// выигрывает одна, вторая получает ErrSaleAlreadyCancelled. Товары, удалённые
	// из каталога после продажи, при реституции молча пропускаются.
	Cancel(id string) (Sale, error)
	// ListCompletedBetween возвращает проведённые продажи за период.
	// Нулевые границы трактуются как «без ограничения».
	ListCompletedBetween(from, to time.Time) ([]Sale, error)
}
