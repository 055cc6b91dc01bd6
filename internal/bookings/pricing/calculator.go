// Package pricing computes reservation totals from the catalog and the
// per-kind extra time rates.
package pricing

import (
	"fmt"

	apperrors "studiobook/pkg/errors"
	"studiobook/pkg/model"
)

type ServiceLine struct {
	Service  *model.AdditionalService
	Quantity int
}

type Input struct {
	Kind         model.StudioKind
	Package      *model.Package
	Quantity     int
	ExtraMinutes int
	Services     []ServiceLine
}

type Breakdown struct {
	PackageCost     int64 `json:"package_cost"`
	ExtraSlabs      int64 `json:"extra_slabs"`
	ExtraTimeCost   int64 `json:"extra_time_cost"`
	ServicesCost    int64 `json:"services_cost"`
	Total           int64 `json:"total"`
	DurationMinutes int   `json:"duration_minutes"`
}

type Calculator struct {
	policies model.Policies
}

func NewCalculator(policies model.Policies) *Calculator {
	return &Calculator{policies: policies}
}

// Calculate prices a booking. Extra time is billed in whole slabs rounded up;
// zero extra minutes bills nothing.
func (c *Calculator) Calculate(in Input) (Breakdown, error) {
	policy, err := c.validate(in)
	if err != nil {
		return Breakdown{}, err
	}

	quantity := int64(in.Quantity)
	b := Breakdown{
		PackageCost:     in.Package.BasePrice * quantity,
		DurationMinutes: in.Package.BaseDurationMinutes*in.Quantity + in.ExtraMinutes,
	}

	if in.ExtraMinutes > 0 {
		slab := int64(policy.ExtraSlabMinutes)
		b.ExtraSlabs = (int64(in.ExtraMinutes) + slab - 1) / slab
		b.ExtraTimeCost = b.ExtraSlabs * policy.ExtraRatePerSlab
	}

	for _, line := range in.Services {
		b.ServicesCost += line.Service.UnitPrice * int64(line.Quantity)
	}

	b.Total = b.PackageCost + b.ExtraTimeCost + b.ServicesCost
	return b, nil
}

// Verify recomputes the total and reports whether it matches the persisted one.
func (c *Calculator) Verify(in Input, persisted int64) (Breakdown, bool, error) {
	b, err := c.Calculate(in)
	if err != nil {
		return Breakdown{}, false, err
	}
	return b, b.Total == persisted, nil
}

func (c *Calculator) validate(in Input) (model.StudioPolicy, error) {
	policy, ok := c.policies.For(in.Kind)
	if !ok {
		return model.StudioPolicy{}, apperrors.Validation(fmt.Sprintf("no pricing policy for studio kind %q", in.Kind), nil)
	}
	if policy.ExtraSlabMinutes <= 0 || policy.ExtraRatePerSlab < 0 {
		return model.StudioPolicy{}, apperrors.Internal("misconfigured extra time billing", fmt.Errorf("kind %s: slab=%d rate=%d", in.Kind, policy.ExtraSlabMinutes, policy.ExtraRatePerSlab))
	}

	details := map[string]any{}
	if in.Package == nil {
		details["package"] = "package is required"
	} else {
		if in.Package.BasePrice < 0 {
			details["base_price"] = "base price cannot be negative"
		}
		if in.Package.BaseDurationMinutes <= 0 {
			details["base_duration_minutes"] = "base duration must be positive"
		}
	}
	switch {
	case in.Quantity < 1:
		details["quantity"] = "quantity must be at least 1"
	case in.Kind == model.Regular && in.Quantity != 1:
		details["quantity"] = "regular studio bookings use quantity 1"
	case policy.MaxQuantity > 0 && in.Quantity > policy.MaxQuantity:
		details["quantity"] = fmt.Sprintf("quantity cannot exceed %d", policy.MaxQuantity)
	}
	if in.ExtraMinutes < 0 {
		details["extra_minutes"] = "extra minutes cannot be negative"
	}
	for i, line := range in.Services {
		key := fmt.Sprintf("services[%d]", i)
		switch {
		case line.Service == nil:
			details[key] = "service is required"
		case line.Service.UnitPrice < 0:
			details[key] = "unit price cannot be negative"
		case line.Quantity < 1:
			details[key] = "quantity must be at least 1"
		case !line.Service.PerUnit && line.Quantity != 1:
			details[key] = "service is not sold per unit"
		}
	}

	if len(details) > 0 {
		return model.StudioPolicy{}, apperrors.Validation("Invalid pricing input", details)
	}
	return policy, nil
}
