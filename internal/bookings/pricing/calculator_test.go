package pricing

import (
	"testing"

	apperrors "studiobook/pkg/errors"
	"studiobook/pkg/model"
)

var testPolicies = model.Policies{
	model.SelfPhoto: {GapMinutes: 5, ExtraSlabMinutes: 5, ExtraRatePerSlab: 5000, MaxQuantity: 10},
	model.Regular:   {GapMinutes: 10, ExtraSlabMinutes: 5, ExtraRatePerSlab: 15000},
}

var (
	selfPhotoPackage = &model.Package{ID: "pkg-self", BasePrice: 100000, BaseDurationMinutes: 30}
	regularPackage   = &model.Package{ID: "pkg-reg", CategoryID: "family", BasePrice: 350000, BaseDurationMinutes: 60}
	printService     = &model.AdditionalService{ID: "print", UnitPrice: 20000, PerUnit: true}
	makeupService    = &model.AdditionalService{ID: "makeup", UnitPrice: 75000}
)

func TestCalculate_Example(t *testing.T) {
	calc := NewCalculator(testPolicies)

	got, err := calc.Calculate(Input{
		Kind:         model.SelfPhoto,
		Package:      selfPhotoPackage,
		Quantity:     1,
		ExtraMinutes: 7,
		Services:     []ServiceLine{{Service: printService, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Breakdown{
		PackageCost:     100000,
		ExtraSlabs:      2,
		ExtraTimeCost:   10000,
		ServicesCost:    40000,
		Total:           150000,
		DurationMinutes: 37,
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestCalculate_Slabs(t *testing.T) {
	calc := NewCalculator(testPolicies)

	tests := []struct {
		extra     int
		wantSlabs int64
	}{
		{0, 0}, {1, 1}, {2, 1}, {4, 1}, {5, 1}, {6, 2}, {10, 2}, {11, 3}, {60, 12},
	}

	for _, tt := range tests {
		got, err := calc.Calculate(Input{Kind: model.Regular, Package: regularPackage, Quantity: 1, ExtraMinutes: tt.extra})
		if err != nil {
			t.Fatalf("extra %d: unexpected error: %v", tt.extra, err)
		}
		if got.ExtraSlabs != tt.wantSlabs {
			t.Errorf("extra %d: slabs = %d, want %d", tt.extra, got.ExtraSlabs, tt.wantSlabs)
		}
		if got.ExtraTimeCost != tt.wantSlabs*15000 {
			t.Errorf("extra %d: cost = %d", tt.extra, got.ExtraTimeCost)
		}
	}
}

func TestCalculate_Monotonic(t *testing.T) {
	calc := NewCalculator(testPolicies)
	total := func(quantity, extra, services int) int64 {
		t.Helper()
		b, err := calc.Calculate(Input{
			Kind:         model.SelfPhoto,
			Package:      selfPhotoPackage,
			Quantity:     quantity,
			ExtraMinutes: extra,
			Services:     []ServiceLine{{Service: printService, Quantity: services}},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return b.Total
	}

	for q := 1; q < 10; q++ {
		for e := 0; e < 30; e++ {
			for s := 1; s < 5; s++ {
				here := total(q, e, s)
				if total(q+1, e, s) < here || total(q, e+1, s) < here || total(q, e, s+1) < here {
					t.Fatalf("total decreased from q=%d e=%d s=%d", q, e, s)
				}
				if here < selfPhotoPackage.BasePrice {
					t.Fatalf("total %d below base price", here)
				}
			}
		}
	}
}

func TestCalculate_QuantityMultipliesPackage(t *testing.T) {
	calc := NewCalculator(testPolicies)

	got, err := calc.Calculate(Input{Kind: model.SelfPhoto, Package: selfPhotoPackage, Quantity: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.PackageCost != 300000 || got.DurationMinutes != 90 || got.Total != 300000 {
		t.Errorf("unexpected breakdown %+v", got)
	}
}

func TestCalculate_ToggleService(t *testing.T) {
	calc := NewCalculator(testPolicies)

	got, err := calc.Calculate(Input{
		Kind:     model.Regular,
		Package:  regularPackage,
		Quantity: 1,
		Services: []ServiceLine{{Service: makeupService, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Total != 425000 {
		t.Errorf("total = %d, want 425000", got.Total)
	}
}

func TestCalculate_Invalid(t *testing.T) {
	calc := NewCalculator(testPolicies)

	tests := []struct {
		name string
		in   Input
	}{
		{name: "zero quantity", in: Input{Kind: model.SelfPhoto, Package: selfPhotoPackage, Quantity: 0}},
		{name: "regular multi quantity", in: Input{Kind: model.Regular, Package: regularPackage, Quantity: 2}},
		{name: "above max quantity", in: Input{Kind: model.SelfPhoto, Package: selfPhotoPackage, Quantity: 11}},
		{name: "negative extra", in: Input{Kind: model.SelfPhoto, Package: selfPhotoPackage, Quantity: 1, ExtraMinutes: -1}},
		{name: "missing package", in: Input{Kind: model.SelfPhoto, Quantity: 1}},
		{name: "unknown kind", in: Input{Kind: "outdoor", Package: selfPhotoPackage, Quantity: 1}},
		{name: "service quantity zero", in: Input{Kind: model.SelfPhoto, Package: selfPhotoPackage, Quantity: 1, Services: []ServiceLine{{Service: printService}}}},
		{name: "toggle quantity two", in: Input{Kind: model.Regular, Package: regularPackage, Quantity: 1, Services: []ServiceLine{{Service: makeupService, Quantity: 2}}}},
		{name: "negative base price", in: Input{Kind: model.SelfPhoto, Package: &model.Package{BasePrice: -1, BaseDurationMinutes: 30}, Quantity: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := calc.Calculate(tt.in)
			if !apperrors.IsCode(err, apperrors.CodeValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestVerify(t *testing.T) {
	calc := NewCalculator(testPolicies)
	in := Input{Kind: model.SelfPhoto, Package: selfPhotoPackage, Quantity: 1, ExtraMinutes: 5}

	b, ok, err := calc.Verify(in, 105000)
	if err != nil || !ok || b.Total != 105000 {
		t.Errorf("expected match, got ok=%v total=%d err=%v", ok, b.Total, err)
	}

	in.ExtraMinutes = 6
	b, ok, err = calc.Verify(in, 105000)
	if err != nil || ok || b.Total != 110000 {
		t.Errorf("expected mismatch at 110000, got ok=%v total=%d err=%v", ok, b.Total, err)
	}
}
