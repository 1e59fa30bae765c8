package memory

import (
	"errors"
	"sync"
	"testing"

	"github.com/marcopolo2323/tienda-celular/internal/domain"
)

func TestCatalogRepository_ResolvePerKind(t *testing.T) {
	repo := NewCatalogRepository()
	_ = repo.Put(domain.Product{Kind: domain.KindPhone, ID: 1, Name: "Samsung Galaxy A55", PriceMinor: 129_990, Stock: 5, Code: "356938035643809"})
	_ = repo.Put(domain.Product{Kind: domain.KindAccessory, ID: 1, Name: "Funda transparente", PriceMinor: 2_990, Stock: 20})
	_ = repo.Put(domain.Product{Kind: domain.KindTVPlan, ID: 1, Name: "Plan TV Basico", PriceMinor: 9_990})

	// Один и тот же числовой ID живёт в коллекции своего вида.
	phone, err := repo.Resolve(domain.KindPhone, 1)
	if err != nil {
		t.Fatalf("resolve phone: %v", err)
	}
	if phone.Name != "Samsung Galaxy A55" {
		t.Fatalf("expected phone, got %s", phone.Name)
	}

	accessory, err := repo.Resolve(domain.KindAccessory, 1)
	if err != nil {
		t.Fatalf("resolve accessory: %v", err)
	}
	if accessory.Name != "Funda transparente" {
		t.Fatalf("expected accessory, got %s", accessory.Name)
	}

	if _, err := repo.Resolve(domain.KindPhone, 99); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
	if _, err := repo.Resolve("laptop", 1); !errors.Is(err, domain.ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
}

func TestCatalogRepository_DecrementStock(t *testing.T) {
	repo := NewCatalogRepository()
	_ = repo.Put(domain.Product{Kind: domain.KindPhone, ID: 1, Name: "Xiaomi Redmi Note 13", PriceMinor: 89_990, Stock: 3})

	if err := repo.DecrementStock(domain.KindPhone, 1, 2); err != nil {
		t.Fatalf("decrement: %v", err)
	}

	p, _ := repo.Resolve(domain.KindPhone, 1)
	if p.Stock != 1 {
		t.Fatalf("expected stock 1, got %d", p.Stock)
	}

	// Остатка не хватает: запись не меняется.
	err := repo.DecrementStock(domain.KindPhone, 1, 2)
	if !domain.IsInsufficientStock(err) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	p, _ = repo.Resolve(domain.KindPhone, 1)
	if p.Stock != 1 {
		t.Fatalf("stock must be unchanged after failed decrement, got %d", p.Stock)
	}
}

func TestCatalogRepository_DecrementStock_TVPlanNoop(t *testing.T) {
	repo := NewCatalogRepository()
	_ = repo.Put(domain.Product{Kind: domain.KindTVPlan, ID: 1, Name: "Plan TV Basico", PriceMinor: 9_990})

	// Подписки продаются без складского учёта.
	if err := repo.DecrementStock(domain.KindTVPlan, 1, 100); err != nil {
		t.Fatalf("tv plan decrement must be a no-op, got %v", err)
	}
}

func TestCatalogRepository_ConcurrentDecrement_NoOversell(t *testing.T) {
	repo := NewCatalogRepository()
	_ = repo.Put(domain.Product{Kind: domain.KindAccessory, ID: 7, Name: "Cargador USB-C 30W", PriceMinor: 5_990, Stock: 10})

	const workers = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.DecrementStock(domain.KindAccessory, 7, 1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 10 {
		t.Fatalf("expected exactly 10 successful decrements, got %d", succeeded)
	}
	p, _ := repo.Resolve(domain.KindAccessory, 7)
	if p.Stock != 0 {
		t.Fatalf("expected stock 0, got %d", p.Stock)
	}
}

func TestCatalogRepository_RestoreStock(t *testing.T) {
	repo := NewCatalogRepository()
	_ = repo.Put(domain.Product{Kind: domain.KindPhone, ID: 1, Name: "iPhone 15", PriceMinor: 349_990, Stock: 1})

	if err := repo.RestoreStock(domain.KindPhone, 1, 2); err != nil {
		t.Fatalf("restore: %v", err)
	}
	p, _ := repo.Resolve(domain.KindPhone, 1)
	if p.Stock != 3 {
		t.Fatalf("expected stock 3, got %d", p.Stock)
	}

	if err := repo.RestoreStock(domain.KindPhone, 99, 1); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestCatalogRepository_ListLowStock(t *testing.T) {
	repo := NewCatalogRepository()
	_ = repo.Put(domain.Product{Kind: domain.KindPhone, ID: 1, Name: "Phone low", PriceMinor: 1000, Stock: 4})
	_ = repo.Put(domain.Product{Kind: domain.KindPhone, ID: 2, Name: "Phone ok", PriceMinor: 1000, Stock: 5})
	_ = repo.Put(domain.Product{Kind: domain.KindAccessory, ID: 1, Name: "Accessory low", PriceMinor: 100, Stock: 9})
	_ = repo.Put(domain.Product{Kind: domain.KindAccessory, ID: 2, Name: "Accessory ok", PriceMinor: 100, Stock: 10})
	_ = repo.Put(domain.Product{Kind: domain.KindTVPlan, ID: 1, Name: "Plan", PriceMinor: 100})

	low, err := repo.ListLowStock()
	if err != nil {
		t.Fatalf("list low stock: %v", err)
	}
	if len(low) != 2 {
		t.Fatalf("expected 2 low stock products, got %d", len(low))
	}
	// Порядок детерминированный: аксессуары раньше смартфонов, внутри вида — по ID.
	if low[0].Kind != domain.KindAccessory || low[1].Kind != domain.KindPhone {
		t.Fatalf("unexpected order: %v", low)
	}
}
