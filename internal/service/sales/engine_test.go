package sales

import (
	"strings"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/marcopolo2323/tienda-celular/internal/domain"
	"github.com/marcopolo2323/tienda-celular/internal/storage/memory"
)

type fixture struct {
	catalog interface {
		domain.CatalogRepository
		Put(p domain.Product) error
		Remove(kind domain.ProductKind, id int64) error
	}
	sales  domain.SaleRepository
	outbox domain.OutboxRepository
	engine *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	catalog := memory.NewCatalogRepository()
	products := []domain.Product{
		{Kind: domain.KindPhone, ID: 1, Name: "Samsung Galaxy A55", PriceMinor: 129_990, Stock: 5},
		{Kind: domain.KindPhone, ID: 2, Name: "Xiaomi Redmi Note 13", PriceMinor: 89_990, Stock: 1},
		{Kind: domain.KindAccessory, ID: 1, Name: "Funda transparente", PriceMinor: 2_990, Stock: 10},
		{Kind: domain.KindTVPlan, ID: 1, Name: "Plan TV Basico", PriceMinor: 9_990},
	}
	for _, p := range products {
		if err := catalog.Put(p); err != nil {
			t.Fatalf("seed product %s: %v", p.Name, err)
		}
	}

	salesRepo := memory.NewSaleRepository(catalog)
	outboxRepo := memory.NewOutboxRepository()
	engine := NewEngineWithoutMetrics(catalog, salesRepo, outboxRepo, log.New().WithField("test", t.Name()))

	return &fixture{catalog: catalog, sales: salesRepo, outbox: outboxRepo, engine: engine}
}

func validInput(items ...RawItem) SaleInput {
	return SaleInput{
		SellerID:      "seller-1",
		CustomerName:  "Maria Lopez",
		CustomerPhone: "+51 987 654 321",
		PaymentMethod: domain.PaymentMethodCash,
		Items:         items,
	}
}

func collectOutbox(t *testing.T, outbox domain.OutboxRepository) []domain.OutboxMessage {
	t.Helper()

	type allPending interface {
		AllPending() []domain.OutboxMessage
	}
	repo, ok := outbox.(allPending)
	if !ok {
		t.Fatal("outbox repository does not support AllPending")
	}
	return repo.AllPending()
}

func TestProcessSale_MixedCart(t *testing.T) {
	f := newFixture(t)

	result := f.engine.ProcessSale(validInput(
		RawItem{Kind: "phone", ProductID: "1", Qty: "2"},
		RawItem{Kind: "accessory", ProductID: "1", Qty: "3"},
		RawItem{Kind: "tv_plan", ProductID: "1", Qty: "1"},
	))

	if !result.Success {
		t.Fatalf("expected success, got %q", result.Message)
	}
	want := int64(2*129_990 + 3*2_990 + 9_990)
	if result.TotalMinor != want {
		t.Fatalf("expected total %d, got %d", want, result.TotalMinor)
	}
	if len(result.Lines) != 3 {
		t.Fatalf("expected 3 line summaries, got %d", len(result.Lines))
	}

	phone, _ := f.catalog.Resolve(domain.KindPhone, 1)
	if phone.Stock != 3 {
		t.Fatalf("expected phone stock 3, got %d", phone.Stock)
	}
	accessory, _ := f.catalog.Resolve(domain.KindAccessory, 1)
	if accessory.Stock != 7 {
		t.Fatalf("expected accessory stock 7, got %d", accessory.Stock)
	}

	sale, err := f.sales.Get(result.SaleID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if sale.Status != domain.SaleStatusCompleted {
		t.Fatalf("expected completed, got %s", sale.Status)
	}
	if sale.TotalMinor != want {
		t.Fatalf("persisted total %d, want %d", sale.TotalMinor, want)
	}

	events := collectOutbox(t, f.outbox)
	if len(events) != 1 {
		t.Fatalf("expected 1 outbox event, got %d", len(events))
	}
	if events[0].EventType != "sale.completed" {
		t.Fatalf("unexpected event type %s", events[0].EventType)
	}
}

func TestProcessSale_InsufficientStock_NothingCommitted(t *testing.T) {
	f := newFixture(t)

	// Первая позиция валидна, вторая запрашивает больше остатка:
	// вся корзина отклоняется, остатки не меняются, записи нет.
	result := f.engine.ProcessSale(validInput(
		RawItem{Kind: "phone", ProductID: "1", Qty: "1"},
		RawItem{Kind: "phone", ProductID: "2", Qty: "3"},
	))

	if result.Success {
		t.Fatal("expected rejection")
	}
	if !strings.Contains(result.Message, "insufficient stock") {
		t.Fatalf("expected insufficient stock message, got %q", result.Message)
	}

	phone1, _ := f.catalog.Resolve(domain.KindPhone, 1)
	if phone1.Stock != 5 {
		t.Fatalf("phone 1 stock must be unchanged, got %d", phone1.Stock)
	}
	phone2, _ := f.catalog.Resolve(domain.KindPhone, 2)
	if phone2.Stock != 1 {
		t.Fatalf("phone 2 stock must be unchanged, got %d", phone2.Stock)
	}

	if events := collectOutbox(t, f.outbox); len(events) != 0 {
		t.Fatalf("expected no outbox events, got %d", len(events))
	}
}

func TestProcessSale_UnknownProduct(t *testing.T) {
	f := newFixture(t)

	result := f.engine.ProcessSale(validInput(
		RawItem{Kind: "phone", ProductID: "99", Qty: "1"},
	))
	if result.Success {
		t.Fatal("expected rejection")
	}
	if !strings.Contains(result.Message, "product not found") {
		t.Fatalf("unexpected message %q", result.Message)
	}
}

func TestProcessSale_UnknownKind(t *testing.T) {
	f := newFixture(t)

	result := f.engine.ProcessSale(validInput(
		RawItem{Kind: "laptop", ProductID: "1", Qty: "1"},
	))
	if result.Success {
		t.Fatal("expected rejection")
	}
	if !strings.Contains(result.Message, "unknown product kind") {
		t.Fatalf("unexpected message %q", result.Message)
	}
}

func TestProcessSale_MalformedRowsSilentlySkipped(t *testing.T) {
	f := newFixture(t)

	// Пустые и нечитаемые строки — пустые слоты формы, они пропускаются;
	// валидная строка проходит.
	result := f.engine.ProcessSale(validInput(
		RawItem{Kind: "phone", ProductID: "", Qty: "2"},
		RawItem{Kind: "phone", ProductID: "abc", Qty: "1"},
		RawItem{Kind: "phone", ProductID: "1", Qty: "0"},
		RawItem{Kind: "phone", ProductID: "1", Qty: "-2"},
		RawItem{Kind: "accessory", ProductID: "1", Qty: "2"},
	))

	if !result.Success {
		t.Fatalf("expected success, got %q", result.Message)
	}
	if len(result.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(result.Lines))
	}
	if result.TotalMinor != 2*2_990 {
		t.Fatalf("unexpected total %d", result.TotalMinor)
	}
}

func TestProcessSale_EmptyCart(t *testing.T) {
	f := newFixture(t)

	result := f.engine.ProcessSale(validInput(
		RawItem{Kind: "phone", ProductID: "", Qty: ""},
		RawItem{Kind: "phone", ProductID: "x", Qty: "y"},
	))

	if result.Success {
		t.Fatal("expected rejection")
	}
	if result.Message != "cart does not contain any valid items" {
		t.Fatalf("unexpected message %q", result.Message)
	}
}

func TestProcessSale_ConcurrentNoOversell(t *testing.T) {
	f := newFixture(t)

	// Остаток 5, каждый покупатель берёт 1: пройти могут максимум пятеро.
	const buyers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := f.engine.ProcessSale(validInput(
				RawItem{Kind: "phone", ProductID: "1", Qty: "1"},
			))
			if result.Success {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 5 {
		t.Fatalf("expected exactly 5 successful sales, got %d", succeeded)
	}
	phone, _ := f.catalog.Resolve(domain.KindPhone, 1)
	if phone.Stock != 0 {
		t.Fatalf("expected stock 0, got %d", phone.Stock)
	}
}

func TestCancelSale_RestoresStockAndIsGuarded(t *testing.T) {
	f := newFixture(t)

	result := f.engine.ProcessSale(validInput(
		RawItem{Kind: "phone", ProductID: "1", Qty: "2"},
	))
	if !result.Success {
		t.Fatalf("process: %q", result.Message)
	}

	cancel := f.engine.CancelSale(result.SaleID)
	if !cancel.Success {
		t.Fatalf("cancel: %q", cancel.Message)
	}

	phone, _ := f.catalog.Resolve(domain.KindPhone, 1)
	if phone.Stock != 5 {
		t.Fatalf("expected stock restored to 5, got %d", phone.Stock)
	}

	// Повторная отмена сообщает об ошибке и ничего не возвращает повторно.
	again := f.engine.CancelSale(result.SaleID)
	if again.Success {
		t.Fatal("repeated cancel must fail")
	}
	if again.Message != "sale is already cancelled" {
		t.Fatalf("unexpected message %q", again.Message)
	}
	phone, _ = f.catalog.Resolve(domain.KindPhone, 1)
	if phone.Stock != 5 {
		t.Fatalf("stock must not grow on repeated cancel, got %d", phone.Stock)
	}

	events := collectOutbox(t, f.outbox)
	// sale.completed + sale.cancelled, второго sale.cancelled нет.
	if len(events) != 2 {
		t.Fatalf("expected 2 outbox events, got %d", len(events))
	}
}

func TestCancelSale_NotFound(t *testing.T) {
	f := newFixture(t)

	result := f.engine.CancelSale("missing")
	if result.Success {
		t.Fatal("expected failure")
	}
	if result.Message != "sale not found" {
		t.Fatalf("unexpected message %q", result.Message)
	}

	empty := f.engine.CancelSale("")
	if empty.Success || empty.Message != "sale id is required" {
		t.Fatalf("unexpected result %+v", empty)
	}
}

func TestSaleDetails_PriceSnapshotImmutable(t *testing.T) {
	f := newFixture(t)

	result := f.engine.ProcessSale(validInput(
		RawItem{Kind: "phone", ProductID: "1", Qty: "1"},
	))
	if !result.Success {
		t.Fatalf("process: %q", result.Message)
	}

	// Каталог подорожал после продажи: снимок цены в позиции не меняется.
	if err := f.catalog.Put(domain.Product{Kind: domain.KindPhone, ID: 1, Name: "Samsung Galaxy A55", PriceMinor: 999_999, Stock: 4}); err != nil {
		t.Fatalf("update catalog: %v", err)
	}

	details, err := f.engine.SaleDetails(result.SaleID)
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	if len(details) != 1 {
		t.Fatalf("expected 1 detail line, got %d", len(details))
	}
	if details[0].UnitPriceMinor != 129_990 {
		t.Fatalf("expected snapshot price 129990, got %d", details[0].UnitPriceMinor)
	}
}

func TestSaleDetails_OmitsRemovedProducts(t *testing.T) {
	f := newFixture(t)

	result := f.engine.ProcessSale(validInput(
		RawItem{Kind: "phone", ProductID: "1", Qty: "1"},
		RawItem{Kind: "accessory", ProductID: "1", Qty: "1"},
	))
	if !result.Success {
		t.Fatalf("process: %q", result.Message)
	}

	if err := f.catalog.Remove(domain.KindPhone, 1); err != nil {
		t.Fatalf("remove: %v", err)
	}

	// Позиция удалённого товара молча пропадает из выдачи,
	// числа продажи при этом не меняются.
	details, err := f.engine.SaleDetails(result.SaleID)
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	if len(details) != 1 {
		t.Fatalf("expected 1 visible line, got %d", len(details))
	}
	if details[0].ProductName != "Funda transparente" {
		t.Fatalf("unexpected line %+v", details[0])
	}

	sale, err := f.sales.Get(result.SaleID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if sale.TotalMinor != 129_990+2_990 {
		t.Fatalf("sale total must be untouched, got %d", sale.TotalMinor)
	}
}

func TestSalesSummary_ByPaymentMethod(t *testing.T) {
	f := newFixture(t)

	cash := validInput(RawItem{Kind: "tv_plan", ProductID: "1", Qty: "1"})
	if r := f.engine.ProcessSale(cash); !r.Success {
		t.Fatalf("cash sale: %q", r.Message)
	}

	card := validInput(RawItem{Kind: "accessory", ProductID: "1", Qty: "2"})
	card.PaymentMethod = domain.PaymentMethodCard
	if r := f.engine.ProcessSale(card); !r.Success {
		t.Fatalf("card sale: %q", r.Message)
	}

	cancelled := validInput(RawItem{Kind: "tv_plan", ProductID: "1", Qty: "1"})
	r := f.engine.ProcessSale(cancelled)
	if !r.Success {
		t.Fatalf("third sale: %q", r.Message)
	}
	if c := f.engine.CancelSale(r.SaleID); !c.Success {
		t.Fatalf("cancel: %q", c.Message)
	}

	summary, err := f.engine.SalesSummary(time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Count != 2 {
		t.Fatalf("expected 2 completed sales, got %d", summary.Count)
	}
	want := int64(9_990 + 2*2_990)
	if summary.RevenueMinor != want {
		t.Fatalf("expected revenue %d, got %d", want, summary.RevenueMinor)
	}
	if summary.AverageMinor != want/2 {
		t.Fatalf("expected average %d, got %d", want/2, summary.AverageMinor)
	}
	if summary.ByPaymentMethod[domain.PaymentMethodCash].Count != 1 {
		t.Fatalf("expected 1 cash sale, got %d", summary.ByPaymentMethod[domain.PaymentMethodCash].Count)
	}
	if summary.ByPaymentMethod[domain.PaymentMethodCard].TotalMinor != 2*2_990 {
		t.Fatalf("unexpected card total %d", summary.ByPaymentMethod[domain.PaymentMethodCard].TotalMinor)
	}
}
