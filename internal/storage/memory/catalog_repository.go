package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/marcopolo2323/tienda-celular/internal/domain"
)

// catalogRepositoryInMemory — простая in-memory реализация CatalogRepository.
// Записи разложены по коллекциям своего вида, как в исходной схеме каталога.
type catalogRepositoryInMemory struct {
	mu          sync.RWMutex
	phones      map[int64]domain.Product
	accessories map[int64]domain.Product
	tvPlans     map[int64]domain.Product
}

// NewCatalogRepository возвращает in-memory каталог для локальной разработки и тестов.
func NewCatalogRepository() *catalogRepositoryInMemory {
	return &catalogRepositoryInMemory{
		phones:      make(map[int64]domain.Product),
		accessories: make(map[int64]domain.Product),
		tvPlans:     make(map[int64]domain.Product),
	}
}

// collection выбирает коллекцию по виду товара; неизвестный вид — ошибка вызывающего.
func (r *catalogRepositoryInMemory) collection(kind domain.ProductKind) (map[int64]domain.Product, error) {
	switch kind {
	case domain.KindPhone:
		return r.phones, nil
	case domain.KindAccessory:
		return r.accessories, nil
	case domain.KindTVPlan:
		return r.tvPlans, nil
	default:
		return nil, domain.ErrInvalidKind
	}
}

// Put добавляет или перезаписывает запись каталога. Используется посевом
// данных и тестами; CRUD каталога живёт за пределами этого сервиса.
func (r *catalogRepositoryInMemory) Put(p domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	col, err := r.collection(p.Kind)
	if err != nil {
		return err
	}
	col[p.ID] = p
	return nil
}

// Remove удаляет запись каталога. История продаж при этом не трогается.
func (r *catalogRepositoryInMemory) Remove(kind domain.ProductKind, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	col, err := r.collection(kind)
	if err != nil {
		return err
	}
	delete(col, id)
	return nil
}

// Resolve возвращает запись каталога или ErrProductNotFound, если её нет.
func (r *catalogRepositoryInMemory) Resolve(kind domain.ProductKind, id int64) (domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	col, err := r.collection(kind)
	if err != nil {
		return domain.Product{}, err
	}
	p, ok := col[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

// DecrementStock атомарно списывает остаток: проверка и уменьшение выполняются
// под одной блокировкой, поэтому два конкурентных списания не могут увести
// остаток в минус. Для видов без складского учёта — no-op.
func (r *catalogRepositoryInMemory) DecrementStock(kind domain.ProductKind, id int64, qty int32) error {
	if !kind.Stocked() {
		if !kind.Valid() {
			return domain.ErrInvalidKind
		}
		return nil
	}
	if qty <= 0 {
		return domain.ErrLineQtyInvalid
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	col, err := r.collection(kind)
	if err != nil {
		return err
	}
	p, ok := col[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	if p.Stock < qty {
		return fmt.Errorf("%w: %s", domain.ErrInsufficientStock, p.Name)
	}
	p.Stock -= qty
	col[id] = p
	return nil
}

// RestoreStock возвращает qty единиц на склад (компенсация при отмене).
func (r *catalogRepositoryInMemory) RestoreStock(kind domain.ProductKind, id int64, qty int32) error {
	if !kind.Stocked() {
		if !kind.Valid() {
			return domain.ErrInvalidKind
		}
		return nil
	}
	if qty <= 0 {
		return domain.ErrLineQtyInvalid
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	col, err := r.collection(kind)
	if err != nil {
		return err
	}
	p, ok := col[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	p.Stock += qty
	col[id] = p
	return nil
}

// ListLowStock возвращает физические товары с остатком ниже порога своего вида.
func (r *catalogRepositoryInMemory) ListLowStock() ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Product, 0)
	for _, p := range r.phones {
		if p.Stock < domain.LowStockPhoneThreshold {
			result = append(result, p)
		}
	}
	for _, p := range r.accessories {
		if p.Stock < domain.LowStockAccessoryThreshold {
			result = append(result, p)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Kind != result[j].Kind {
			return result[i].Kind < result[j].Kind
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

var _ domain.CatalogRepository = (*catalogRepositoryInMemory)(nil)
