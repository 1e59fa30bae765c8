package domain

// ProductKind определяет вид товара в каталоге магазина.
type ProductKind string

const (
	// KindPhone — смартфон; физический товар со складским остатком и IMEI.
	KindPhone ProductKind = "phone"
	// KindAccessory — аксессуар; физический товар со складским остатком и кодом товара.
	KindAccessory ProductKind = "accessory"
	// KindTVPlan — пакет ТВ-подписки; остатка нет, доступность не ограничена.
	KindTVPlan ProductKind = "tv_plan"
)

// Valid проверяет, что вид товара относится к поддерживаемым значениям.
func (k ProductKind) Valid() bool {
	switch k {
	case KindPhone, KindAccessory, KindTVPlan:
		return true
	default:
		return false
	}
}

// Stocked сообщает, ведётся ли по данному виду товара складской учёт.
// Подписки продаются без остатка, физические товары — только при его наличии.
func (k ProductKind) Stocked() bool {
	return k == KindPhone || k == KindAccessory
}

// Пороговые значения для отчёта о низком остатке.
const (
	LowStockPhoneThreshold     int32 = 5
	LowStockAccessoryThreshold int32 = 10
)

// Product — запись каталога, разрешённая по паре (вид, идентификатор).
type Product struct {
	Kind ProductKind
	ID   int64
	// Name — отображаемое имя: «марка + модель» для смартфонов,
	// название для аксессуаров и ТВ-пакетов.
	Name string
	// PriceMinor — цена за единицу в минимальных денежных единицах.
	// Для ТВ-пакетов это месячная цена подписки.
	PriceMinor int64
	// Stock — текущий складской остаток; осмыслен только для Stocked-видов.
	Stock int32
	// Code — уникальный аппаратный идентификатор: IMEI для смартфонов,
	// код товара для аксессуаров. Для подписок пуст.
	Code string
}

// ValidateInvariants проверяет базовые инварианты записи каталога.
func (p *Product) ValidateInvariants() []error {
	var errs []error

	if !p.Kind.Valid() {
		errs = append(errs, ErrInvalidKind)
	}
	if p.Name == "" {
		errs = append(errs, ErrProductNameRequired)
	}
	if p.PriceMinor < 0 {
		errs = append(errs, ErrProductPriceInvalid)
	}
	if p.Stock < 0 {
		errs = append(errs, ErrStockNegative)
	}

	return errs
}
