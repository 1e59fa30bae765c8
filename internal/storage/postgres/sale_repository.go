package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/marcopolo2323/tienda-celular/internal/domain"
)

const saleOpTimeout = 5 * time.Second

type saleRepository struct {
	db *sql.DB
}

// NewSaleRepository создаёт PostgreSQL-реализацию SaleRepository.
func NewSaleRepository(store *Store) domain.SaleRepository {
	return &saleRepository{db: store.DB()}
}

// Create сохраняет продажу одной транзакцией: заголовок, позиции и условные
// списания остатков. Отказ любого списания откатывает транзакцию целиком —
// частично проведённых продаж и осиротевших заголовков не бывает.
func (r *saleRepository) Create(sale domain.Sale) error {
	ctx, cancel := context.WithTimeout(context.Background(), saleOpTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (
			id, seller_id, customer_name, customer_phone, customer_email,
			payment_method, status, total_minor, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		sale.ID, sale.SellerID, sale.CustomerName, sale.CustomerPhone, sale.CustomerEmail,
		string(sale.PaymentMethod), string(sale.Status), sale.TotalMinor, sale.CreatedAt, sale.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}

	for _, line := range sale.Lines {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO sale_lines (
				id, sale_id, kind, product_id, qty, unit_price_minor, notes, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`,
			line.ID, sale.ID, string(line.Kind), line.ProductID, line.Qty,
			line.UnitPriceMinor, line.Notes, line.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert sale line: %w", err)
		}

		if !line.Kind.Stocked() {
			continue
		}
		var table string
		table, err = stockTableFor(line.Kind)
		if err != nil {
			return err
		}
		if err = conditionalDecrement(ctx, tx, table, line.ProductID, line.Qty); err != nil {
			return fmt.Errorf("decrement stock for %s/%d: %w", line.Kind, line.ProductID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create sale: %w", err)
	}

	return nil
}

// Get возвращает продажу с позициями или ErrSaleNotFound.
func (r *saleRepository) Get(id string) (domain.Sale, error) {
	ctx, cancel := context.WithTimeout(context.Background(), saleOpTimeout)
	defer cancel()

	sale, err := r.loadSale(ctx, r.db, id)
	if err != nil {
		return domain.Sale{}, err
	}

	lines, err := r.loadLines(ctx, r.db, id)
	if err != nil {
		return domain.Sale{}, err
	}
	sale.Lines = lines

	return sale, nil
}

// Cancel переводит продажу completed → cancelled и возвращает остатки.
// Guarded-переход (`WHERE status = 'completed'`) гарантирует, что из двух
// конкурентных отмен реституцию выполнит только одна.
func (r *saleRepository) Cancel(id string) (domain.Sale, error) {
	ctx, cancel := context.WithTimeout(context.Background(), saleOpTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Sale{}, fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		UPDATE sales
		SET status = $1, updated_at = $2
		WHERE id = $3
		  AND status = $4
	`, string(domain.SaleStatusCancelled), now, id, string(domain.SaleStatusCompleted))
	if err != nil {
		return domain.Sale{}, fmt.Errorf("update sale status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Sale{}, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		// Либо продажи нет, либо статус не допускает отмену.
		var status string
		err = tx.QueryRowContext(ctx, `SELECT status FROM sales WHERE id = $1`, id).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			err = domain.ErrSaleNotFound
			return domain.Sale{}, err
		}
		if err != nil {
			return domain.Sale{}, fmt.Errorf("check sale status: %w", err)
		}
		if domain.SaleStatus(status) == domain.SaleStatusCancelled {
			err = domain.ErrSaleAlreadyCancelled
		} else {
			err = domain.ErrSaleNotCancellable
		}
		return domain.Sale{}, err
	}

	lines, err := r.loadLines(ctx, tx, id)
	if err != nil {
		return domain.Sale{}, err
	}

	for _, line := range lines {
		if !line.Kind.Stocked() {
			continue
		}
		var table string
		table, err = stockTableFor(line.Kind)
		if err != nil {
			return domain.Sale{}, err
		}
		// Товар мог быть удалён из каталога после продажи: affected=0
		// в этом случае не ошибка, позиция молча пропускается.
		if _, err = tx.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s SET stock = stock + $1 WHERE id = $2`, table),
			line.Qty, line.ProductID,
		); err != nil {
			return domain.Sale{}, fmt.Errorf("restore stock for %s/%d: %w", line.Kind, line.ProductID, err)
		}
	}

	sale, err := r.loadSale(ctx, tx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	sale.Lines = lines

	if err = tx.Commit(); err != nil {
		return domain.Sale{}, fmt.Errorf("commit cancel sale: %w", err)
	}

	return sale, nil
}

// ListCompletedBetween возвращает проведённые продажи за период, новые первыми.
func (r *saleRepository) ListCompletedBetween(from, to time.Time) ([]domain.Sale, error) {
	ctx, cancel := context.WithTimeout(context.Background(), saleOpTimeout)
	defer cancel()

	query := `
		SELECT id, seller_id, customer_name, customer_phone, customer_email,
		       payment_method, status, total_minor, created_at, updated_at
		FROM sales
		WHERE status = $1
	`
	args := []any{string(domain.SaleStatusCompleted)}
	if !from.IsZero() {
		args = append(args, from)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if !to.IsZero() {
		args = append(args, to)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list completed sales: %w", err)
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sale rows: %w", err)
	}

	for i := range sales {
		lines, err := r.loadLines(ctx, r.db, sales[i].ID)
		if err != nil {
			return nil, err
		}
		sales[i].Lines = lines
	}

	return sales, nil
}

// querier покрывает и *sql.DB, и *sql.Tx для read-операций.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *saleRepository) loadSale(ctx context.Context, db querier, id string) (domain.Sale, error) {
	var (
		sale          domain.Sale
		paymentMethod string
		status        string
	)
	err := db.QueryRowContext(ctx, `
		SELECT id, seller_id, customer_name, customer_phone, customer_email,
		       payment_method, status, total_minor, created_at, updated_at
		FROM sales
		WHERE id = $1
	`, id).Scan(
		&sale.ID, &sale.SellerID, &sale.CustomerName, &sale.CustomerPhone, &sale.CustomerEmail,
		&paymentMethod, &status, &sale.TotalMinor, &sale.CreatedAt, &sale.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Sale{}, domain.ErrSaleNotFound
		}
		return domain.Sale{}, fmt.Errorf("select sale: %w", err)
	}
	sale.PaymentMethod = domain.PaymentMethod(paymentMethod)
	sale.Status = domain.SaleStatus(status)

	return sale, nil
}

func (r *saleRepository) loadLines(ctx context.Context, db querier, saleID string) ([]domain.SaleLine, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, kind, product_id, qty, unit_price_minor, notes, created_at
		FROM sale_lines
		WHERE sale_id = $1
		ORDER BY created_at ASC, id ASC
	`, saleID)
	if err != nil {
		return nil, fmt.Errorf("load sale lines: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.SaleLine, 0)
	for rows.Next() {
		var (
			line domain.SaleLine
			kind string
		)
		if err := rows.Scan(&line.ID, &kind, &line.ProductID, &line.Qty, &line.UnitPriceMinor, &line.Notes, &line.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan sale line: %w", err)
		}
		line.Kind = domain.ProductKind(kind)
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sale lines: %w", err)
	}

	return lines, nil
}

func scanSale(rows *sql.Rows) (domain.Sale, error) {
	var (
		sale          domain.Sale
		paymentMethod string
		status        string
	)
	if err := rows.Scan(
		&sale.ID, &sale.SellerID, &sale.CustomerName, &sale.CustomerPhone, &sale.CustomerEmail,
		&paymentMethod, &status, &sale.TotalMinor, &sale.CreatedAt, &sale.UpdatedAt,
	); err != nil {
		return domain.Sale{}, fmt.Errorf("scan sale row: %w", err)
	}
	sale.PaymentMethod = domain.PaymentMethod(paymentMethod)
	sale.Status = domain.SaleStatus(status)
	return sale, nil
}

var _ domain.SaleRepository = (*saleRepository)(nil)
