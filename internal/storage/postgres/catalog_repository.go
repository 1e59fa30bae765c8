package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/marcopolo2323/tienda-celular/internal/domain"
)

const catalogOpTimeout = 5 * time.Second

type catalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository создаёт PostgreSQL-реализацию CatalogRepository.
func NewCatalogRepository(store *Store) domain.CatalogRepository {
	return &catalogRepository{db: store.DB()}
}

// stockTableFor возвращает таблицу остатков для Stocked-вида товара.
func stockTableFor(kind domain.ProductKind) (string, error) {
	switch kind {
	case domain.KindPhone:
		return "phones", nil
	case domain.KindAccessory:
		return "accessories", nil
	case domain.KindTVPlan:
		return "", fmt.Errorf("kind %s is not stock-bearing", kind)
	default:
		return "", domain.ErrInvalidKind
	}
}

// Resolve читает запись каталога из коллекции своего вида.
func (r *catalogRepository) Resolve(kind domain.ProductKind, id int64) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), catalogOpTimeout)
	defer cancel()

	product := domain.Product{Kind: kind, ID: id}
	var (
		code sql.NullString
		err  error
	)

	switch kind {
	case domain.KindPhone:
		err = r.db.QueryRowContext(ctx, `
			SELECT name, price_minor, stock, imei
			FROM phones
			WHERE id = $1
		`, id).Scan(&product.Name, &product.PriceMinor, &product.Stock, &code)
	case domain.KindAccessory:
		err = r.db.QueryRowContext(ctx, `
			SELECT name, price_minor, stock, product_code
			FROM accessories
			WHERE id = $1
		`, id).Scan(&product.Name, &product.PriceMinor, &product.Stock, &code)
	case domain.KindTVPlan:
		err = r.db.QueryRowContext(ctx, `
			SELECT name, monthly_price_minor
			FROM tv_plans
			WHERE id = $1
		`, id).Scan(&product.Name, &product.PriceMinor)
	default:
		return domain.Product{}, domain.ErrInvalidKind
	}

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select %s product: %w", kind, err)
	}
	product.Code = code.String

	return product, nil
}

// DecrementStock выполняет условное списание одной командой:
// «уменьшить на qty, только если остаток >= qty». Проверка и запись
// атомарны на уровне строки, конкурентные продажи не уводят остаток в минус.
func (r *catalogRepository) DecrementStock(kind domain.ProductKind, id int64, qty int32) error {
	if !kind.Stocked() {
		if !kind.Valid() {
			return domain.ErrInvalidKind
		}
		return nil
	}
	if qty <= 0 {
		return domain.ErrLineQtyInvalid
	}

	table, err := stockTableFor(kind)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), catalogOpTimeout)
	defer cancel()

	return conditionalDecrement(ctx, r.db, table, id, qty)
}

// RestoreStock возвращает qty единиц на склад.
func (r *catalogRepository) RestoreStock(kind domain.ProductKind, id int64, qty int32) error {
	if !kind.Stocked() {
		if !kind.Valid() {
			return domain.ErrInvalidKind
		}
		return nil
	}
	if qty <= 0 {
		return domain.ErrLineQtyInvalid
	}

	table, err := stockTableFor(kind)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), catalogOpTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET stock = stock + $1 WHERE id = $2`, table),
		qty, id,
	)
	if err != nil {
		return fmt.Errorf("restore stock in %s: %w", table, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

// ListLowStock возвращает физические товары с остатком ниже порога своего вида.
func (r *catalogRepository) ListLowStock() ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), catalogOpTimeout)
	defer cancel()

	result := make([]domain.Product, 0)

	phones, err := r.listBelowThreshold(ctx, domain.KindPhone, "phones", "imei", domain.LowStockPhoneThreshold)
	if err != nil {
		return nil, err
	}
	result = append(result, phones...)

	accessories, err := r.listBelowThreshold(ctx, domain.KindAccessory, "accessories", "product_code", domain.LowStockAccessoryThreshold)
	if err != nil {
		return nil, err
	}
	result = append(result, accessories...)

	return result, nil
}

func (r *catalogRepository) listBelowThreshold(ctx context.Context, kind domain.ProductKind, table, codeCol string, threshold int32) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, name, price_minor, stock, %s
		FROM %s
		WHERE stock < $1
		ORDER BY id ASC
	`, codeCol, table), threshold)
	if err != nil {
		return nil, fmt.Errorf("list low stock %s: %w", table, err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		p := domain.Product{Kind: kind}
		var code sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceMinor, &p.Stock, &code); err != nil {
			return nil, fmt.Errorf("scan low stock row: %w", err)
		}
		p.Code = code.String
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate low stock rows: %w", err)
	}

	return products, nil
}

// execer покрывает и *sql.DB, и *sql.Tx: условное списание используется
// как самостоятельно, так и внутри транзакции проведения продажи.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func conditionalDecrement(ctx context.Context, db execer, table string, id int64, qty int32) error {
	res, err := db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET stock = stock - $1 WHERE id = $2 AND stock >= $1`, table),
		qty, id,
	)
	if err != nil {
		return fmt.Errorf("decrement stock in %s: %w", table, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}

	// Строка не изменилась: либо товара нет, либо остатка не хватило.
	var name string
	err = db.QueryRowContext(ctx, fmt.Sprintf(`SELECT name FROM %s WHERE id = $1`, table), id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrProductNotFound
	}
	if err != nil {
		return fmt.Errorf("check product exists in %s: %w", table, err)
	}
	return fmt.Errorf("%w: %s", domain.ErrInsufficientStock, name)
}

var _ domain.CatalogRepository = (*catalogRepository)(nil)
