package rest

import (
	"testing"

	"github.com/marcopolo2323/tienda-celular/internal/domain"
)

func TestValidateCustomer_OK(t *testing.T) {
	problems := validateCustomer("Maria Lopez", "+51 987-654-321", "maria@example.com", domain.PaymentMethodCash)
	if len(problems) != 0 {
		t.Fatalf("expected no problems, got %v", problems)
	}
}

func TestValidateCustomer_OptionalContacts(t *testing.T) {
	problems := validateCustomer("Maria Lopez", "", "", domain.PaymentMethodCard)
	if len(problems) != 0 {
		t.Fatalf("phone and email are optional, got %v", problems)
	}
}

func TestValidateCustomer_Problems(t *testing.T) {
	tests := []struct {
		name   string
		cname  string
		phone  string
		email  string
		method domain.PaymentMethod
		field  string
	}{
		{"missing name", "   ", "", "", domain.PaymentMethodCash, "customer_name"},
		{"phone too short", "Maria", "123456", "", domain.PaymentMethodCash, "customer_phone"},
		{"phone too long", "Maria", "1234567890123456", "", domain.PaymentMethodCash, "customer_phone"},
		{"phone with letters", "Maria", "98765432a", "", domain.PaymentMethodCash, "customer_phone"},
		{"bad email", "Maria", "", "not-an-email", domain.PaymentMethodCash, "customer_email"},
		{"email without domain", "Maria", "", "maria@", domain.PaymentMethodCash, "customer_email"},
		{"bad method", "Maria", "", "", "barter", "payment_method"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			problems := validateCustomer(tc.cname, tc.phone, tc.email, tc.method)
			if _, ok := problems[tc.field]; !ok {
				t.Fatalf("expected problem for %s, got %v", tc.field, problems)
			}
		})
	}
}

func TestValidPhone_AllowsFormatting(t *testing.T) {
	valid := []string{"9876543", "+51 987 654 321", "(01) 234-5678", "123456789012345"}
	for _, phone := range valid {
		if !validPhone(phone) {
			t.Errorf("%q should be valid", phone)
		}
	}

	invalid := []string{"123456", "1234567890123456", "98-76-ab"}
	for _, phone := range invalid {
		if validPhone(phone) {
			t.Errorf("%q should be invalid", phone)
		}
	}
}
