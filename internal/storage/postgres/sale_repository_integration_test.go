package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/marcopolo2323/tienda-celular/internal/domain"
)

func buildIntegrationSale(phoneID int64, qty int32) domain.Sale {
	now := time.Now().UTC().Truncate(time.Microsecond)
	line := domain.SaleLine{
		ID:             uuid.NewString(),
		Kind:           domain.KindPhone,
		ProductID:      phoneID,
		Qty:            qty,
		UnitPriceMinor: 129_990,
		CreatedAt:      now,
	}
	return domain.Sale{
		ID:            uuid.NewString(),
		SellerID:      "seller-1",
		CustomerName:  "Maria Lopez",
		PaymentMethod: domain.PaymentMethodCash,
		Status:        domain.SaleStatusCompleted,
		TotalMinor:    int64(qty) * line.UnitPriceMinor,
		Lines:         []domain.SaleLine{line},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestSaleRepository_PostgresCreateAndGet(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	phoneID := seedPhoneForIntegrationTest(t, store, "Samsung Galaxy A55", 129_990, 5)

	repo := NewSaleRepository(store)
	catalog := NewCatalogRepository(store)

	sale := buildIntegrationSale(phoneID, 2)
	require.NoError(t, repo.Create(sale))

	got, err := repo.Get(sale.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SaleStatusCompleted, got.Status)
	require.Equal(t, sale.TotalMinor, got.TotalMinor)
	require.Len(t, got.Lines, 1)

	phone, err := catalog.Resolve(domain.KindPhone, phoneID)
	require.NoError(t, err)
	require.Equal(t, int32(3), phone.Stock)
}

func TestSaleRepository_PostgresCreateRollsBackOnInsufficientStock(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	phoneID := seedPhoneForIntegrationTest(t, store, "Xiaomi Redmi Note 13", 89_990, 1)

	repo := NewSaleRepository(store)
	catalog := NewCatalogRepository(store)

	sale := buildIntegrationSale(phoneID, 3)
	err := repo.Create(sale)
	require.Error(t, err)
	require.True(t, domain.IsInsufficientStock(err))

	// Транзакция откатилась целиком: ни заголовка, ни списания.
	_, err = repo.Get(sale.ID)
	require.True(t, errors.Is(err, domain.ErrSaleNotFound))

	phone, err := catalog.Resolve(domain.KindPhone, phoneID)
	require.NoError(t, err)
	require.Equal(t, int32(1), phone.Stock)
}

func TestSaleRepository_PostgresCancelGuardedTransition(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	phoneID := seedPhoneForIntegrationTest(t, store, "iPhone 15", 349_990, 4)

	repo := NewSaleRepository(store)
	catalog := NewCatalogRepository(store)

	sale := buildIntegrationSale(phoneID, 3)
	require.NoError(t, repo.Create(sale))

	cancelled, err := repo.Cancel(sale.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SaleStatusCancelled, cancelled.Status)

	phone, err := catalog.Resolve(domain.KindPhone, phoneID)
	require.NoError(t, err)
	require.Equal(t, int32(4), phone.Stock)

	// Повторная отмена отклоняется, реституция не повторяется.
	_, err = repo.Cancel(sale.ID)
	require.True(t, errors.Is(err, domain.ErrSaleAlreadyCancelled))

	phone, err = catalog.Resolve(domain.KindPhone, phoneID)
	require.NoError(t, err)
	require.Equal(t, int32(4), phone.Stock)

	_, err = repo.Cancel(uuid.NewString())
	require.True(t, errors.Is(err, domain.ErrSaleNotFound))
}

func TestOutboxRepository_PostgresRoundTrip(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOutboxRepository(store)

	msg, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: "sale",
		AggregateID:   uuid.NewString(),
		EventType:     "sale.completed",
		Payload:       []byte(`{"sale_id":"x"}`),
	})
	require.NoError(t, err)
	require.NotEmpty(t, msg.ID)

	pending, err := repo.PullPending(10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	stats, err := repo.Stats()
	require.NoError(t, err)
	require.Equal(t, 1, stats.PendingCount)

	require.NoError(t, repo.MarkSent(msg.ID))

	pending, err = repo.PullPending(10)
	require.NoError(t, err)
	require.Empty(t, pending)
}
