package rest

import (
	"regexp"
	"strings"

	"github.com/marcopolo2323/tienda-celular/internal/domain"
)

var (
	phoneDigitsPattern = regexp.MustCompile(`^\d{7,15}$`)
	emailPattern       = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// validateCustomer проверяет реквизиты покупателя до передачи корзины в движок.
// Телефон и email необязательны, но если указаны — должны иметь корректную форму.
func validateCustomer(name, phone, email string, method domain.PaymentMethod) map[string]string {
	problems := make(map[string]string)

	if strings.TrimSpace(name) == "" {
		problems["customer_name"] = "customer name is required"
	}

	if phone != "" && !validPhone(phone) {
		problems["customer_phone"] = "phone must contain 7 to 15 digits"
	}

	if email != "" && !emailPattern.MatchString(email) {
		problems["customer_email"] = "email address is not valid"
	}

	if !method.Valid() {
		problems["payment_method"] = "payment method must be one of: cash, card, transfer, credit"
	}

	return problems
}

// validPhone допускает пробелы, дефисы и ведущий «+», считает только цифры.
func validPhone(phone string) bool {
	cleaned := strings.NewReplacer(" ", "", "-", "", "+", "", "(", "", ")", "").Replace(phone)
	return phoneDigitsPattern.MatchString(cleaned)
}
