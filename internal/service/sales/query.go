package sales

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/marcopolo2323/tienda-celular/internal/domain"
)

// LineDetail — позиция продажи, подготовленная для отображения.
// Цена и количество берутся из неизменяемого снимка; по каталогу
// разрешается только актуальное отображаемое имя.
type LineDetail struct {
	ProductName    string             `json:"product_name"`
	Kind           domain.ProductKind `json:"kind"`
	Qty            int32              `json:"qty"`
	UnitPriceMinor int64              `json:"unit_price_minor"`
	SubtotalMinor  int64              `json:"subtotal_minor"`
}

// MethodStats — агрегат по одному способу оплаты.
type MethodStats struct {
	Count      int   `json:"count"`
	TotalMinor int64 `json:"total_minor"`
}

// Summary — сводка проведённых продаж за период.
type Summary struct {
	Count           int                                  `json:"count"`
	RevenueMinor    int64                                `json:"revenue_minor"`
	AverageMinor    int64                                `json:"average_minor"`
	ByPaymentMethod map[domain.PaymentMethod]MethodStats `json:"by_payment_method"`
	From            time.Time                            `json:"from,omitempty"`
	To              time.Time                            `json:"to,omitempty"`
}

// SaleDetails возвращает позиции продажи для отображения. Позиции, чей товар
// удалён из каталога, молча опускаются: история чисел при этом не меняется,
// теряется только строка в выдаче.
func (e *Engine) SaleDetails(saleID string) ([]LineDetail, error) {
	sale, err := e.sales.Get(saleID)
	if err != nil {
		return nil, err
	}

	details := make([]LineDetail, 0, len(sale.Lines))
	for _, line := range sale.Lines {
		product, err := e.catalog.Resolve(line.Kind, line.ProductID)
		if err != nil {
			if !domain.IsNotFound(err) {
				e.logger.WithError(err).WithFields(log.Fields{
					"sale_id":    saleID,
					"kind":       line.Kind,
					"product_id": line.ProductID,
				}).Warn("resolve product for sale details failed")
			}
			continue
		}
		details = append(details, LineDetail{
			ProductName:    product.Name,
			Kind:           line.Kind,
			Qty:            line.Qty,
			UnitPriceMinor: line.UnitPriceMinor,
			SubtotalMinor:  int64(line.Qty) * line.UnitPriceMinor,
		})
	}

	return details, nil
}

// SalesSummary агрегирует проведённые продажи за период: количество, выручку,
// средний чек и разбивку по способам оплаты. Нулевые границы — «без ограничения».
func (e *Engine) SalesSummary(from, to time.Time) (Summary, error) {
	salesList, err := e.sales.ListCompletedBetween(from, to)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		ByPaymentMethod: make(map[domain.PaymentMethod]MethodStats),
		From:            from,
		To:              to,
	}
	for _, sale := range salesList {
		summary.Count++
		summary.RevenueMinor += sale.TotalMinor

		stats := summary.ByPaymentMethod[sale.PaymentMethod]
		stats.Count++
		stats.TotalMinor += sale.TotalMinor
		summary.ByPaymentMethod[sale.PaymentMethod] = stats
	}
	if summary.Count > 0 {
		summary.AverageMinor = summary.RevenueMinor / int64(summary.Count)
	}

	return summary, nil
}
