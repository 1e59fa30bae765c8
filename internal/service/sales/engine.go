package sales

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/marcopolo2323/tienda-celular/internal/domain"
	"github.com/marcopolo2323/tienda-celular/internal/messaging/kafka"
	"github.com/marcopolo2323/tienda-celular/internal/metrics"
)

// SaleInput — входные данные продажи, собранные web-границей.
// Поля покупателя уже провалидированы выше по стеку.
type SaleInput struct {
	SellerID      string
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	PaymentMethod domain.PaymentMethod
	Items         []RawItem
}

// LineSummary — краткая сводка по проведённой позиции для ответа вызывающему.
type LineSummary struct {
	Product        string             `json:"product"`
	Kind           domain.ProductKind `json:"kind"`
	Qty            int32              `json:"qty"`
	UnitPriceMinor int64              `json:"unit_price_minor"`
}

// SaleResult — результат ProcessSale. Ошибки валидации не поднимаются выше
// движка: они сворачиваются в success=false и человекочитаемое сообщение.
type SaleResult struct {
	Success    bool          `json:"success"`
	Message    string        `json:"message"`
	SaleID     string        `json:"sale_id,omitempty"`
	TotalMinor int64         `json:"total_minor,omitempty"`
	Lines      []LineSummary `json:"lines,omitempty"`
}

// CancelResult — результат CancelSale.
type CancelResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Engine — движок проведения продаж: валидация корзины, атомарный коммит
// заголовка, позиций и списаний остатков, компенсирующая отмена.
type Engine struct {
	catalog       domain.CatalogLookup
	sales         domain.SaleRepository
	outbox        domain.OutboxRepository
	logger        *log.Entry
	metrics       *metrics.SaleMetrics
	kafkaProducer *kafka.Producer // опциональный producer для event-driven интеграций
	validator     *validator
}

// NewEngine создаёт рабочий экземпляр движка продаж.
func NewEngine(
	catalog domain.CatalogLookup,
	sales domain.SaleRepository,
	outbox domain.OutboxRepository,
	logger *log.Entry,
) *Engine {
	if logger == nil {
		logger = log.New().WithField("component", "sales")
	}
	return &Engine{
		catalog:   catalog,
		sales:     sales,
		outbox:    outbox,
		logger:    logger,
		metrics:   metrics.NewSaleMetrics(),
		validator: &validator{catalog: catalog},
	}
}

// NewEngineWithKafka создаёт движок с Kafka producer для публикации событий продаж.
func NewEngineWithKafka(
	catalog domain.CatalogLookup,
	sales domain.SaleRepository,
	outbox domain.OutboxRepository,
	kafkaProducer *kafka.Producer,
	logger *log.Entry,
) *Engine {
	engine := NewEngine(catalog, sales, outbox, logger)
	engine.kafkaProducer = kafkaProducer
	return engine
}

// NewEngineWithoutMetrics создаёт движок без метрик (для тестов).
func NewEngineWithoutMetrics(
	catalog domain.CatalogLookup,
	sales domain.SaleRepository,
	outbox domain.OutboxRepository,
	logger *log.Entry,
) *Engine {
	if logger == nil {
		logger = log.New().WithField("component", "sales")
	}
	return &Engine{
		catalog:   catalog,
		sales:     sales,
		outbox:    outbox,
		logger:    logger,
		metrics:   nil,
		validator: &validator{catalog: catalog},
	}
}

// ProcessSale валидирует корзину и проводит продажу одной атомарной операцией:
// заголовок, позиции и списания остатков либо фиксируются целиком, либо не
// фиксируются вовсе. Частично проведённых продаж снаружи не видно.
func (e *Engine) ProcessSale(input SaleInput) SaleResult {
	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.RecordProcessingDuration(time.Since(start))
		}
	}()

	items, err := e.validator.validate(input.Items)
	if err != nil {
		e.recordFailure(err)
		e.logger.WithError(err).WithField("seller_id", input.SellerID).Info("sale rejected at validation")
		return SaleResult{Success: false, Message: failureMessage(err)}
	}

	now := time.Now().UTC()
	lines := make([]domain.SaleLine, 0, len(items))
	var total int64
	for _, item := range items {
		lines = append(lines, domain.SaleLine{
			ID:             uuid.NewString(),
			Kind:           item.product.Kind,
			ProductID:      item.product.ID,
			Qty:            item.qty,
			UnitPriceMinor: item.product.PriceMinor,
			Notes:          item.notes,
			CreatedAt:      now,
		})
		total += int64(item.qty) * item.product.PriceMinor
	}

	sale := domain.Sale{
		ID:            uuid.NewString(),
		SellerID:      input.SellerID,
		CustomerName:  input.CustomerName,
		CustomerPhone: input.CustomerPhone,
		CustomerEmail: input.CustomerEmail,
		PaymentMethod: input.PaymentMethod,
		Status:        domain.SaleStatusCompleted,
		TotalMinor:    total,
		Lines:         lines,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if errs := sale.ValidateInvariants(); len(errs) > 0 {
		e.recordFailure(errs[0])
		e.logger.WithField("violations", joinErrors(errs)).Warn("sale rejected by invariants")
		return SaleResult{Success: false, Message: failureMessage(errs[0])}
	}

	if err := e.sales.Create(sale); err != nil {
		e.recordFailure(err)
		if domain.IsInsufficientStock(err) {
			// Валидация прошла по устаревшему снимку, условное списание
			// в момент коммита отказало — продажа не зафиксирована.
			e.logger.WithError(err).WithField("sale_id", sale.ID).Info("conditional decrement rejected sale")
			return SaleResult{Success: false, Message: domain.ErrInsufficientStock.Error()}
		}
		e.logger.WithError(err).WithField("sale_id", sale.ID).Error("failed to persist sale")
		return SaleResult{Success: false, Message: "failed to process sale"}
	}

	if e.metrics != nil {
		e.metrics.RecordSaleProcessed(sale.TotalMinor)
	}

	summaries := make([]LineSummary, 0, len(items))
	for _, item := range items {
		summaries = append(summaries, LineSummary{
			Product:        item.product.Name,
			Kind:           item.product.Kind,
			Qty:            item.qty,
			UnitPriceMinor: item.product.PriceMinor,
		})
	}

	e.emitEvent(&sale, kafka.EventTypeSaleCompleted, map[string]interface{}{
		"seller_id":      sale.SellerID,
		"total_minor":    sale.TotalMinor,
		"payment_method": string(sale.PaymentMethod),
		"lines_count":    len(sale.Lines),
	})

	return SaleResult{
		Success:    true,
		Message:    "sale processed successfully",
		SaleID:     sale.ID,
		TotalMinor: sale.TotalMinor,
		Lines:      summaries,
	}
}

// CancelSale отменяет проведённую продажу и возвращает остатки на склад.
// Повторная отмена сообщает об ошибке, а не проходит молча: остатки
// возвращаются ровно один раз.
func (e *Engine) CancelSale(saleID string) CancelResult {
	if saleID == "" {
		return CancelResult{Success: false, Message: "sale id is required"}
	}

	sale, err := e.sales.Cancel(saleID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSaleNotFound):
			return CancelResult{Success: false, Message: "sale not found"}
		case errors.Is(err, domain.ErrSaleAlreadyCancelled):
			return CancelResult{Success: false, Message: "sale is already cancelled"}
		case errors.Is(err, domain.ErrSaleNotCancellable):
			return CancelResult{Success: false, Message: "sale cannot be cancelled"}
		default:
			e.logger.WithError(err).WithField("sale_id", saleID).Error("failed to cancel sale")
			return CancelResult{Success: false, Message: "failed to cancel sale"}
		}
	}

	if e.metrics != nil {
		e.metrics.RecordSaleCancelled()
	}

	e.emitEvent(&sale, kafka.EventTypeSaleCancelled, map[string]interface{}{
		"seller_id":   sale.SellerID,
		"total_minor": sale.TotalMinor,
	})

	return CancelResult{Success: true, Message: "sale cancelled successfully"}
}

func (e *Engine) recordFailure(err error) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordSaleFailed()
	if domain.IsInsufficientStock(err) {
		e.metrics.RecordInsufficientStock()
	}
}

// emitEvent кладёт событие в transactional outbox и, если настроен producer,
// дублирует его в Kafka. Ошибки публикации продажу не откатывают.
func (e *Engine) emitEvent(sale *domain.Sale, eventType kafka.EventType, payload map[string]interface{}) {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	payload["sale_id"] = sale.ID
	payload["ts"] = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(payload)
	if err != nil {
		e.logger.WithError(err).WithFields(log.Fields{
			"sale_id": sale.ID,
			"event":   eventType,
		}).Error("marshal event failed")
		return
	}

	if e.outbox != nil {
		msg := domain.OutboxMessage{
			AggregateType: "sale",
			AggregateID:   sale.ID,
			EventType:     string(eventType),
			Payload:       data,
		}
		if _, err := e.outbox.Enqueue(msg); err != nil {
			e.logger.WithError(err).WithFields(log.Fields{
				"sale_id": sale.ID,
				"event":   eventType,
			}).Error("enqueue event failed")
		}
	}

	if e.kafkaProducer != nil {
		event := kafka.NewSaleEvent(eventType, sale.ID, payload)
		if err := e.kafkaProducer.PublishEvent(kafka.TopicSaleEvents, sale.ID, event); err != nil {
			e.logger.WithError(err).WithFields(log.Fields{
				"sale_id": sale.ID,
				"event":   eventType,
			}).Warn("failed to publish sale event to kafka")
		}
	}
}

// failureMessage сворачивает ошибку валидации в сообщение для пользователя.
// Внутренние детали хранилища наружу не попадают.
func failureMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyCart):
		return "cart does not contain any valid items"
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrInvalidKind):
		return err.Error()
	default:
		return "failed to process sale"
	}
}

func joinErrors(errs []error) string {
	parts := make([]string, 0, len(errs))
	for _, err := range errs {
		parts = append(parts, err.Error())
	}
	result := ""
	for i, part := range parts {
		if i > 0 {
			result += "; "
		}
		result += part
	}
	return result
}
