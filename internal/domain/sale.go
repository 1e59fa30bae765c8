package domain

import "time"

// SaleStatus описывает жизненный цикл продажи.
// Persist-уровень знает только два статуса: «completed» и «cancelled»;
// промежуточное состояние существует лишь внутри вызова ProcessSale
// и наружу никогда не попадает.
type SaleStatus string

const (
	// SaleStatusCompleted — продажа проведена, остатки списаны, сумма зафиксирована.
	SaleStatusCompleted SaleStatus = "completed"
	// SaleStatusCancelled — продажа отменена, остатки возвращены на склад.
	// Статус терминальный: обратного перехода нет.
	SaleStatusCancelled SaleStatus = "cancelled"
)

// PaymentMethod — способ оплаты, выбранный покупателем.
type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodCard     PaymentMethod = "card"
	PaymentMethodTransfer PaymentMethod = "transfer"
	PaymentMethodCredit   PaymentMethod = "credit"
)

// Valid проверяет, что способ оплаты относится к поддерживаемым значениям.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodTransfer, PaymentMethodCredit:
		return true
	default:
		return false
	}
}

// SaleLine представляет одну позицию продажи.
// Товар каталога указывается составным ключом (вид, идентификатор),
// а не внешним ключом: удаление товара не трогает историю продаж.
type SaleLine struct {
	// ID позиции нужен для однозначной идентификации и аудита.
	ID string
	// Kind и ProductID вместе разрешаются в запись каталога.
	Kind      ProductKind
	ProductID int64
	// Qty — количество единиц товара, всегда > 0.
	Qty int32
	// UnitPriceMinor — цена за единицу, зафиксированная в момент продажи.
	// Снимок неизменяем: последующие правки каталога историю не меняют.
	UnitPriceMinor int64
	// Notes — произвольный текст: гарантия, комментарий продавца.
	Notes     string
	CreatedAt time.Time
}

// Sale агрегирует заголовок продажи и её позиции.
type Sale struct {
	ID       string
	SellerID string

	// Данные покупателя — свободный текст, провалидированный на web-границе.
	CustomerName  string
	CustomerPhone string
	CustomerEmail string

	PaymentMethod PaymentMethod
	Status        SaleStatus
	// TotalMinor — производная сумма: Σ(qty × unit price) по позициям.
	// Фиксируется при создании и дальше не пересчитывается.
	TotalMinor int64
	Lines      []SaleLine
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ValidateInvariants проверяет базовые инварианты продажи и возвращает список замечаний.
func (s *Sale) ValidateInvariants() []error {
	var errs []error

	if s.SellerID == "" {
		errs = append(errs, ErrSellerRequired)
	}
	if s.CustomerName == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if !s.PaymentMethod.Valid() {
		errs = append(errs, ErrPaymentMethodInvalid)
	}
	if len(s.Lines) == 0 {
		errs = append(errs, ErrLinesRequired)
	}
	if s.TotalMinor < 0 {
		errs = append(errs, ErrTotalNegative)
	}

	// Сверяем сумму продажи с суммой позиций: qty * unit price.
	var calc int64
	for _, line := range s.Lines {
		if !line.Kind.Valid() {
			errs = append(errs, ErrInvalidKind)
		}
		if line.Qty <= 0 {
			errs = append(errs, ErrLineQtyInvalid)
		}
		if line.UnitPriceMinor < 0 {
			errs = append(errs, ErrLinePriceInvalid)
		}
		calc += int64(line.Qty) * line.UnitPriceMinor
	}
	if calc != s.TotalMinor {
		errs = append(errs, ErrTotalMismatch)
	}

	return errs
}
