package memory

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/marcopolo2323/tienda-celular/internal/domain"
)

// saleRepositoryInMemory — in-memory реализация SaleRepository.
// Списание остатков делегируется каталогу: каждое списание условное,
// а частично применённые списания компенсируются при неудаче, поэтому
// свойство «всё или ничего» сохраняется и без настоящих транзакций.
type saleRepositoryInMemory struct {
	mu      sync.Mutex
	catalog domain.CatalogRepository
	items   map[string]domain.Sale
}

// NewSaleRepository возвращает in-memory репозиторий продаж поверх каталога.
func NewSaleRepository(catalog domain.CatalogRepository) domain.SaleRepository {
	return &saleRepositoryInMemory{
		catalog: catalog,
		items:   make(map[string]domain.Sale),
	}
}

// Create сохраняет продажу и списывает остатки по Stocked-позициям.
// При нехватке остатка уже сделанные списания откатываются и запись не создаётся.
func (r *saleRepositoryInMemory) Create(sale domain.Sale) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[sale.ID]; exists {
		return fmt.Errorf("sale already exists: %s", sale.ID)
	}

	applied := make([]domain.SaleLine, 0, len(sale.Lines))
	for _, line := range sale.Lines {
		if !line.Kind.Stocked() {
			continue
		}
		if err := r.catalog.DecrementStock(line.Kind, line.ProductID, line.Qty); err != nil {
			// Компенсируем уже применённые списания.
			for _, done := range applied {
				_ = r.catalog.RestoreStock(done.Kind, done.ProductID, done.Qty)
			}
			return fmt.Errorf("decrement stock for %s/%d: %w", line.Kind, line.ProductID, err)
		}
		applied = append(applied, line)
	}

	// Сохраняем копию с собственным срезом позиций, чтобы избежать мутаций извне.
	sale.Lines = append([]domain.SaleLine(nil), sale.Lines...)
	r.items[sale.ID] = sale
	return nil
}

// Get возвращает продажу или ErrSaleNotFound, если её нет.
func (r *saleRepositoryInMemory) Get(id string) (domain.Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sale, ok := r.items[id]
	if !ok {
		return domain.Sale{}, domain.ErrSaleNotFound
	}
	sale.Lines = append([]domain.SaleLine(nil), sale.Lines...)
	return sale, nil
}

// Cancel переводит продажу completed → cancelled и возвращает остатки.
// Проверка статуса и переход выполняются под одной блокировкой, поэтому
// из двух конкурентных отмен выигрывает только одна.
func (r *saleRepositoryInMemory) Cancel(id string) (domain.Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sale, ok := r.items[id]
	if !ok {
		return domain.Sale{}, domain.ErrSaleNotFound
	}

	switch sale.Status {
	case domain.SaleStatusCancelled:
		return domain.Sale{}, domain.ErrSaleAlreadyCancelled
	case domain.SaleStatusCompleted:
		// Единственный допустимый исходный статус.
	default:
		return domain.Sale{}, domain.ErrSaleNotCancellable
	}

	for _, line := range sale.Lines {
		if !line.Kind.Stocked() {
			continue
		}
		// Товары, удалённые из каталога после продажи, молча пропускаем:
		// отмена не должна падать из-за осиротевших позиций.
		if err := r.catalog.RestoreStock(line.Kind, line.ProductID, line.Qty); err != nil && !domain.IsNotFound(err) {
			return domain.Sale{}, fmt.Errorf("restore stock for %s/%d: %w", line.Kind, line.ProductID, err)
		}
	}

	sale.Status = domain.SaleStatusCancelled
	sale.UpdatedAt = time.Now().UTC()
	r.items[id] = sale

	sale.Lines = append([]domain.SaleLine(nil), sale.Lines...)
	return sale, nil
}

// ListCompletedBetween возвращает проведённые продажи за период, новые первыми.
func (r *saleRepositoryInMemory) ListCompletedBetween(from, to time.Time) ([]domain.Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]domain.Sale, 0)
	for _, sale := range r.items {
		if sale.Status != domain.SaleStatusCompleted {
			continue
		}
		if !from.IsZero() && sale.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && sale.CreatedAt.After(to) {
			continue
		}
		sale.Lines = append([]domain.SaleLine(nil), sale.Lines...)
		result = append(result, sale)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	return result, nil
}

var _ domain.SaleRepository = (*saleRepositoryInMemory)(nil)
