package domain

import "testing"

func TestProductKind_Valid(t *testing.T) {
	for _, k := range []ProductKind{KindPhone, KindAccessory, KindTVPlan} {
		if !k.Valid() {
			t.Errorf("%s should be valid", k)
		}
	}
	if ProductKind("laptop").Valid() {
		t.Error("unknown kind should be invalid")
	}
}

func TestProductKind_Stocked(t *testing.T) {
	if !KindPhone.Stocked() {
		t.Error("phones are stock-bearing")
	}
	if !KindAccessory.Stocked() {
		t.Error("accessories are stock-bearing")
	}
	if KindTVPlan.Stocked() {
		t.Error("tv plans have no stock")
	}
}

func TestProduct_ValidateInvariants(t *testing.T) {
	p := Product{Kind: KindPhone, ID: 1, Name: "Samsung Galaxy A55", PriceMinor: 129_990, Stock: 5}
	if errs := p.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no violations, got %v", errs)
	}

	bad := Product{Kind: "unknown", Name: "", PriceMinor: -1, Stock: -3}
	errs := bad.ValidateInvariants()
	if len(errs) != 4 {
		t.Fatalf("expected 4 violations, got %d: %v", len(errs), errs)
	}
}
